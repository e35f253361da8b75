package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/domain"
)

// compressThreshold is the details size above which payloads are stored
// zstd-compressed instead of as plain JSONB.
const compressThreshold = 10 * 1024

// Service writes and reads the audit trail.
type Service struct {
	repo    Repository
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewService creates the audit service.
func NewService(repo Repository) (*Service, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Service{repo: repo, encoder: encoder, decoder: decoder}, nil
}

// Record appends one entry. It must be called inside the transaction of the
// action it describes; the repository picks up that transaction from ctx.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if entry.BranchID == "" {
		return apperror.NewValidation("audit entry requires a branch")
	}
	if entry.ActionType == "" || entry.EntityType == "" {
		return apperror.NewValidation("audit entry requires action and entity type")
	}

	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Details) > compressThreshold {
		entry.DetailsCompressed = s.encoder.EncodeAll(entry.Details, nil)
		entry.Details = nil
		entry.CompressionAlgo = CompressionZstd
	}

	if err := s.repo.Insert(ctx, &entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// RecordAction is a convenience wrapper that marshals structured details.
func (s *Service) RecordAction(
	ctx context.Context,
	branchID, actorUserID string,
	action ActionType,
	entityType EntityType,
	entityID id.ID,
	description string,
	details map[string]any,
) error {
	var raw json.RawMessage
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		raw = b
	}

	return s.Record(ctx, Entry{
		BranchID:    branchID,
		ActorUserID: actorUserID,
		ActionType:  action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
		Details:     raw,
	})
}

// List returns entries for a branch, newest first by default.
// Compressed payloads are inflated before they leave the service.
func (s *Service) List(ctx context.Context, branchID string, filter ListFilter) (domain.ListResult[*Entry], error) {
	if filter.Limit <= 0 {
		filter.ListFilter = domain.DefaultListFilter()
	}

	result, err := s.repo.List(ctx, branchID, filter)
	if err != nil {
		return result, fmt.Errorf("list audit entries: %w", err)
	}

	for _, e := range result.Items {
		if e.CompressionAlgo != CompressionZstd || len(e.DetailsCompressed) == 0 {
			continue
		}
		raw, err := s.decoder.DecodeAll(e.DetailsCompressed, nil)
		if err != nil {
			return result, fmt.Errorf("decompress audit details %s: %w", e.ID, err)
		}
		e.Details = raw
		e.DetailsCompressed = nil
		e.CompressionAlgo = CompressionNone
	}

	return result, nil
}
