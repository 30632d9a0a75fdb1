package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Event is one fact to hand to the dispatcher.
type Event struct {
	OrgID     snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// Outbox appends events inside the caller's transaction so the event becomes
// durable exactly when the triggering rows do.
type Outbox struct {
	log   *zap.Logger
	genID *snowflake.Node
}

func NewOutbox(log *zap.Logger, genID *snowflake.Node) *Outbox {
	return &Outbox{
		log:   log.Named("events.outbox"),
		genID: genID,
	}
}

var (
	ErrInvalidEvent = errors.New("invalid_event")
)

// Publish inserts the event using tx. A duplicate dedupe key is a no-op, which
// keeps re-delivered webhooks from producing a second billing event.
func (o *Outbox) Publish(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("missing_tx")
	}
	if event.OrgID == 0 || strings.TrimSpace(event.Type) == "" {
		return ErrInvalidEvent
	}

	record := MessageEvent{
		ID:        o.genID.Generate(),
		OrgID:     event.OrgID,
		EventType: event.Type,
		Payload:   datatypes.JSONMap(event.Payload),
		CreatedAt: time.Now().UTC(),
	}
	if key := strings.TrimSpace(event.DedupeKey); key != "" {
		record.DedupeKey = &key
	}

	db := tx.WithContext(ctx)
	if record.DedupeKey != nil {
		db = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "dedupe_key"}},
			DoNothing: true,
		})
	}
	result := db.Create(&record)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		o.log.Debug("event deduplicated",
			zap.String("event_type", event.Type),
			zap.Stringp("dedupe_key", record.DedupeKey),
		)
	}
	return nil
}
