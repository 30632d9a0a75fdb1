package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatwire/chatwire/internal/observability"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler consumes one processed-message event. Handlers run isolated from
// each other: an error (or panic) in one never reaches its siblings.
type Handler func(ctx context.Context, payload MessageProcessedPayload) error

type subscriber struct {
	name string
	fn   Handler
}

// Dispatcher drains pending outbox rows and fans each out to subscribers.
// A row is claimed with a conditional update before delivery, so each event
// is consumed at most once even with concurrent pumps.
type Dispatcher struct {
	db          *gorm.DB
	log         *zap.Logger
	metrics     *observability.Metrics
	subscribers []subscriber
}

func NewDispatcher(db *gorm.DB, log *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		db:      db,
		log:     log.Named("events.dispatcher"),
		metrics: metrics,
	}
}

func (d *Dispatcher) Subscribe(name string, fn Handler) {
	d.subscribers = append(d.subscribers, subscriber{name: name, fn: fn})
}

// DispatchPending claims and delivers up to limit unpublished events.
// Returns the number of events delivered to subscribers.
func (d *Dispatcher) DispatchPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}

	var pending []MessageEvent
	err := d.db.WithContext(ctx).
		Where("published = ? AND event_type = ?", false, EventMessageProcessed).
		Order("created_at ASC").
		Limit(limit).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, event := range pending {
		claimed, err := d.claim(ctx, event.ID)
		if err != nil {
			return dispatched, err
		}
		if !claimed {
			continue
		}

		payload, err := d.decode(event)
		if err != nil {
			d.log.Error("undecodable event payload",
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			if d.metrics != nil {
				d.metrics.IncEventDispatched("undecodable")
			}
			continue
		}

		// Simulations are tagged upstream and dropped here, before any
		// listener can mutate quota, wallet or ledger state.
		if payload.Simulated {
			if d.metrics != nil {
				d.metrics.IncEventDispatched("simulated_dropped")
			}
			continue
		}

		d.deliver(ctx, event, payload)
		dispatched++
	}
	return dispatched, nil
}

func (d *Dispatcher) claim(ctx context.Context, id snowflake.ID) (bool, error) {
	now := time.Now().UTC()
	result := d.db.WithContext(ctx).
		Model(&MessageEvent{}).
		Where("id = ? AND published = ?", id, false).
		Updates(map[string]any{
			"published":    true,
			"published_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (d *Dispatcher) decode(event MessageEvent) (MessageProcessedPayload, error) {
	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return MessageProcessedPayload{}, err
	}
	return decodePayload(raw)
}

func (d *Dispatcher) deliver(ctx context.Context, event MessageEvent, payload MessageProcessedPayload) {
	for _, sub := range d.subscribers {
		if err := d.safeHandle(ctx, sub, payload); err != nil {
			d.log.Error("subscriber failed",
				zap.String("subscriber", sub.name),
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			if d.metrics != nil {
				d.metrics.IncEventDispatched("subscriber_error")
			}
			continue
		}
		if d.metrics != nil {
			d.metrics.IncEventDispatched("delivered")
		}
	}
}

func (d *Dispatcher) safeHandle(ctx context.Context, sub subscriber, payload MessageProcessedPayload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber %s panicked: %v", sub.name, r)
		}
	}()
	return sub.fn(ctx, payload)
}
