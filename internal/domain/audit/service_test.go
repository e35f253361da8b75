package audit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/domain"
)

type memTrail struct {
	entries []*Entry
}

func (m *memTrail) Insert(_ context.Context, entry *Entry) error {
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memTrail) List(_ context.Context, branchID string, _ ListFilter) (domain.ListResult[*Entry], error) {
	var out []*Entry
	for _, e := range m.entries {
		if e.BranchID == branchID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return domain.ListResult[*Entry]{Items: out, TotalCount: int64(len(out))}, nil
}

func newTrail(t *testing.T) (*Service, *memTrail) {
	t.Helper()
	repo := &memTrail{}
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func TestRecordAction_SmallDetailsStoredRaw(t *testing.T) {
	svc, repo := newTrail(t)

	err := svc.RecordAction(context.Background(),
		"branch-1", "user-1",
		ActionSaleCreated, EntitySale, id.New(),
		"sale of 2 line(s)",
		map[string]any{"total_amount": "41.00", "line_count": 2},
	)
	require.NoError(t, err)

	require.Len(t, repo.entries, 1)
	e := repo.entries[0]
	assert.False(t, id.IsNil(e.ID))
	assert.False(t, e.CreatedAt.IsZero())
	assert.Equal(t, CompressionNone, e.CompressionAlgo)
	assert.Empty(t, e.DetailsCompressed)

	var details map[string]any
	require.NoError(t, json.Unmarshal(e.Details, &details))
	assert.Equal(t, "41.00", details["total_amount"])
}

func TestRecord_LargeDetailsCompressedAndInflatedOnRead(t *testing.T) {
	svc, repo := newTrail(t)
	ctx := context.Background()

	big, err := json.Marshal(map[string]any{
		"dump": strings.Repeat("abcdefgh", 4096), // 32KB, well past the threshold
	})
	require.NoError(t, err)

	err = svc.Record(ctx, Entry{
		BranchID:    "branch-1",
		ActorUserID: "user-1",
		ActionType:  ActionStockReceived,
		EntityType:  EntityStockItem,
		EntityID:    id.New(),
		Description: "bulk receipt",
		Details:     big,
	})
	require.NoError(t, err)

	require.Len(t, repo.entries, 1)
	stored := repo.entries[0]
	assert.Equal(t, CompressionZstd, stored.CompressionAlgo)
	assert.Nil(t, stored.Details)
	assert.NotEmpty(t, stored.DetailsCompressed)
	assert.Less(t, len(stored.DetailsCompressed), len(big))

	// List transparently inflates the payload.
	result, err := svc.List(ctx, "branch-1", ListFilter{})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	got := result.Items[0]
	assert.Equal(t, CompressionNone, got.CompressionAlgo)
	assert.JSONEq(t, string(big), string(got.Details))
}

func TestRecord_RequiresBranchAndTypes(t *testing.T) {
	svc, repo := newTrail(t)
	ctx := context.Background()

	err := svc.Record(ctx, Entry{
		ActionType: ActionSaleCreated,
		EntityType: EntitySale,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	err = svc.Record(ctx, Entry{BranchID: "branch-1"})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	assert.Empty(t, repo.entries)
}

func TestRecordAction_NoDetailsLeavesPayloadEmpty(t *testing.T) {
	svc, repo := newTrail(t)

	err := svc.RecordAction(context.Background(),
		"branch-1", "user-1",
		ActionReturnFlagged, EntityReturn, id.New(),
		"return flagged", nil,
	)
	require.NoError(t, err)

	require.Len(t, repo.entries, 1)
	assert.Empty(t, repo.entries[0].Details)
}
