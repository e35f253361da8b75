package postgres

import (
	"reflect"
)

// ExtractDBColumns extracts column names from struct "db" tags, in field
// order. Fields tagged "-" and embedded structs loaded separately are
// skipped. Called once at package init time, so reflection overhead does
// not matter.
//
// Usage:
//
//	var saleColumns = ExtractDBColumns[sale.Sale]()
func ExtractDBColumns[T any]() []string {
	var zero T
	return extractColumnsFromType(reflect.TypeOf(zero))
}

func extractColumnsFromType(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var cols []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			cols = append(cols, extractColumnsFromType(field.Type)...)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, tag)
	}
	return cols
}
