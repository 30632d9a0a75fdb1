package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatwire/chatwire/internal/clock"
	"github.com/chatwire/chatwire/internal/config"
	"github.com/chatwire/chatwire/internal/events"
	usagedomain "github.com/chatwire/chatwire/internal/usage/domain"
	usageservice "github.com/chatwire/chatwire/internal/usage/service"
	walletdomain "github.com/chatwire/chatwire/internal/wallet/domain"
	walletservice "github.com/chatwire/chatwire/internal/wallet/service"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type schedFixture struct {
	sched      *Scheduler
	db         *gorm.DB
	node       *snowflake.Node
	clk        *clock.FakeClock
	usageSvc   usagedomain.Service
	dispatcher *events.Dispatcher
	outbox     *events.Outbox
}

func setupScheduler(t *testing.T) schedFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&usagedomain.SubscriptionCycle{},
		&usagedomain.AccountUsage{},
		&walletdomain.Wallet{},
		&events.MessageEvent{},
	))

	node, _ := snowflake.NewNode(1)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	walletSvc := walletservice.NewService(walletservice.Params{DB: db, Log: log, GenID: node})
	usageSvc := usageservice.NewService(usageservice.Params{
		DB: db, Log: log, GenID: node,
		Config:    config.Config{Billing: config.BillingConfig{AIMessageCost: 15}},
		WalletSvc: walletSvc,
	})
	dispatcher := events.NewDispatcher(db, log, nil)

	sched, err := New(Params{
		Log:        log,
		Clock:      clk,
		UsageSvc:   usageSvc,
		Dispatcher: dispatcher,
	})
	assert.NoError(t, err)

	return schedFixture{
		sched:      sched,
		db:         db,
		node:       node,
		clk:        clk,
		usageSvc:   usageSvc,
		dispatcher: dispatcher,
		outbox:     events.NewOutbox(log, node),
	}
}

func TestRunOncePumpsOutbox(t *testing.T) {
	f := setupScheduler(t)
	orgID := f.node.Generate()

	delivered := 0
	f.dispatcher.Subscribe("test", func(ctx context.Context, payload events.MessageProcessedPayload) error {
		delivered++
		return nil
	})

	payload := events.MessageProcessedPayload{OrgID: orgID, MessageID: f.node.Generate()}
	m, _ := payload.ToMap()
	assert.NoError(t, f.outbox.Publish(context.Background(), f.db, events.Event{
		OrgID:   orgID,
		Type:    events.EventMessageProcessed,
		Payload: m,
	}))

	assert.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, 1, delivered)

	// A second run finds nothing pending.
	assert.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, 1, delivered)
}

func TestRunOnceResetsExpiredCycles(t *testing.T) {
	f := setupScheduler(t)
	orgID := f.node.Generate()
	subID := f.node.Generate()

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	cycle, err := f.usageSvc.OpenCycle(context.Background(), orgID, subID, start, end, 100)
	assert.NoError(t, err)

	// The clock sits exactly at the period end.
	assert.NoError(t, f.sched.RunOnce(context.Background()))

	var old usagedomain.SubscriptionCycle
	assert.NoError(t, f.db.First(&old, "id = ?", cycle.ID).Error)
	assert.Equal(t, usagedomain.CycleStatusClosed, old.Status)

	fresh, err := f.usageSvc.CurrentCycle(context.Background(), subID)
	assert.NoError(t, err)
	assert.Equal(t, int64(100), fresh.MessagesRemaining)
}

func TestRunOnceLeavesFutureCyclesOpen(t *testing.T) {
	f := setupScheduler(t)
	orgID := f.node.Generate()
	subID := f.node.Generate()

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	cycle, err := f.usageSvc.OpenCycle(context.Background(), orgID, subID, start, start.AddDate(0, 1, 0), 100)
	assert.NoError(t, err)

	assert.NoError(t, f.sched.RunOnce(context.Background()))

	got, err := f.usageSvc.CurrentCycle(context.Background(), subID)
	assert.NoError(t, err)
	assert.Equal(t, cycle.ID, got.ID)

	// Once the clock passes the period end the next run closes it.
	f.clk.Advance(32 * 24 * time.Hour)
	assert.NoError(t, f.sched.RunOnce(context.Background()))

	fresh, err := f.usageSvc.CurrentCycle(context.Background(), subID)
	assert.NoError(t, err)
	assert.NotEqual(t, cycle.ID, fresh.ID)
}

func TestNewRequiresCoreDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 5*time.Second, cfg.RunInterval)
	assert.Equal(t, 50, cfg.DispatchBatchSize)
	assert.Equal(t, 50, cfg.ResetBatchSize)
	assert.Equal(t, time.Minute, cfg.LockTTL)

	custom := Config{RunInterval: time.Second, DispatchBatchSize: 5}.withDefaults()
	assert.Equal(t, time.Second, custom.RunInterval)
	assert.Equal(t, 5, custom.DispatchBatchSize)
	assert.Equal(t, 50, custom.ResetBatchSize)
}
