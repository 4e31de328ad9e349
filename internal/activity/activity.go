// Package activity records release audit entries and fans them out to
// in-process subscribers.
package activity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/pkg/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry is one audit record: a previous/next value pair for a
// release-scoped mutation.
type Entry struct {
	ReleaseID uuid.UUID
	AccountID uuid.UUID
	TaskID    uuid.UUID
	Type      Type
	Previous  interface{}
	Next      interface{}
}

// Sink persists audit entries.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

type sink struct {
	db  *gorm.DB
	bus Bus
}

// NewSink builds a gorm-backed sink. The bus is optional.
func NewSink(db *gorm.DB, bus Bus) Sink {
	return &sink{db: db, bus: bus}
}

func (s *sink) Record(ctx context.Context, entry Entry) error {
	previous, err := marshal(entry.Previous)
	if err != nil {
		return err
	}
	next, err := marshal(entry.Next)
	if err != nil {
		return err
	}

	row := &models.ActivityLog{
		ID:        uuid.New(),
		ReleaseID: entry.ReleaseID,
		AccountID: entry.AccountID,
		Type:      string(entry.Type),
		Previous:  previous,
		Next:      next,
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}

	if s.bus != nil {
		payload, err := json.Marshal(row)
		if err != nil {
			log.Error("failed to marshal activity event", "error", err, "release_id", entry.ReleaseID)
			return nil
		}
		s.bus.Publish(Event{
			Type:      entry.Type,
			ReleaseID: entry.ReleaseID,
			TaskID:    entry.TaskID,
			Timestamp: time.Now().UTC(),
			Payload:   payload,
		})
	}

	return nil
}

func marshal(value interface{}) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
