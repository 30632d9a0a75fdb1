package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatwire/chatwire/internal/aiprovider"
	chatdomain "github.com/chatwire/chatwire/internal/chataccount/domain"
	chatservice "github.com/chatwire/chatwire/internal/chataccount/service"
	"github.com/chatwire/chatwire/internal/config"
	convdomain "github.com/chatwire/chatwire/internal/conversation/domain"
	convservice "github.com/chatwire/chatwire/internal/conversation/service"
	"github.com/chatwire/chatwire/internal/events"
	productdomain "github.com/chatwire/chatwire/internal/product/domain"
	productservice "github.com/chatwire/chatwire/internal/product/service"
	usagedomain "github.com/chatwire/chatwire/internal/usage/domain"
	usageservice "github.com/chatwire/chatwire/internal/usage/service"
	walletdomain "github.com/chatwire/chatwire/internal/wallet/domain"
	walletservice "github.com/chatwire/chatwire/internal/wallet/service"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubInvoker struct {
	completion aiprovider.Completion
	err        error
	calls      int
	lastReq    aiprovider.Request
}

func (s *stubInvoker) Invoke(ctx context.Context, req aiprovider.Request) (aiprovider.Completion, error) {
	s.calls++
	s.lastReq = req
	return s.completion, s.err
}

type fixture struct {
	orch     *Orchestrator
	invoker  *stubInvoker
	db       *gorm.DB
	node     *snowflake.Node
	svc      chatdomain.Service
	usageSvc usagedomain.Service
	store    convdomain.Store
	account  chatdomain.ChatAccount
	conv     convdomain.Conversation
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&chatdomain.ChatAccount{},
		&chatdomain.AIConfig{},
		&productdomain.Product{},
		&productdomain.AccountProduct{},
		&convdomain.Conversation{},
		&convdomain.Message{},
		&walletdomain.Wallet{},
		&usagedomain.SubscriptionCycle{},
		&usagedomain.AccountUsage{},
		&events.MessageEvent{},
	))

	node, _ := snowflake.NewNode(1)
	cfg := config.Config{
		AI: config.AIConfig{
			DefaultModel:        "gpt-4o-mini",
			ContextWindowLength: 20,
		},
		Billing: config.BillingConfig{
			Currency:           "XAF",
			AIMessageCost:      15,
			ProductMessageCost: 10,
			MediaCost:          5,
			OverageEnabled:     true,
			MaxLinkedPerAgent:  50,
			MaxSentPerMessage:  10,
		},
	}
	log := zap.NewNop()

	accountSvc := chatservice.NewService(chatservice.Params{DB: db, Log: log, GenID: node})
	productSvc := productservice.NewService(productservice.Params{DB: db, Log: log, GenID: node, Config: cfg})
	walletSvc := walletservice.NewService(walletservice.Params{DB: db, Log: log, GenID: node})
	usageSvc := usageservice.NewService(usageservice.Params{DB: db, Log: log, GenID: node, Config: cfg, WalletSvc: walletSvc})
	store := convservice.NewStore(convservice.Params{DB: db, Log: log, GenID: node, Outbox: events.NewOutbox(log, node)})
	invoker := &stubInvoker{}

	orch := New(Params{
		Log:        log,
		Config:     cfg,
		AccountSvc: accountSvc,
		ProductSvc: productSvc,
		UsageSvc:   usageSvc,
		Store:      store,
		Invoker:    invoker,
		Builder:    aiprovider.NewContextBuilder(cfg.AI.ContextWindowLength),
	})

	account := chatdomain.ChatAccount{
		ID:             node.Generate(),
		OrgID:          node.Generate(),
		SubscriptionID: node.Generate(),
		Address:        "+23760000001",
		DisplayName:    "Shop",
		Connected:      true,
	}
	assert.NoError(t, db.Create(&account).Error)

	conv, err := store.FindOrCreateConversation(context.Background(), account.OrgID, account.ID, "+23760000099")
	assert.NoError(t, err)

	return &fixture{
		orch:     orch,
		invoker:  invoker,
		db:       db,
		node:     node,
		svc:      accountSvc,
		usageSvc: usageSvc,
		store:    store,
		account:  account,
		conv:     conv,
	}
}

func (f *fixture) enableAI(t *testing.T, mutate func(*chatdomain.UpdateConfigRequest)) {
	t.Helper()
	enabled := true
	req := chatdomain.UpdateConfigRequest{
		AccountID: f.account.ID,
		Enabled:   &enabled,
	}
	if mutate != nil {
		mutate(&req)
	}
	_, err := f.svc.UpdateConfig(context.Background(), req)
	assert.NoError(t, err)
}

func (f *fixture) openCycle(t *testing.T, limit int64) {
	t.Helper()
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.usageSvc.OpenCycle(context.Background(), f.account.OrgID, f.account.SubscriptionID, start, start.AddDate(0, 1, 0), limit)
	assert.NoError(t, err)
}

func (f *fixture) linkProduct(t *testing.T, name string) productdomain.Product {
	t.Helper()
	p := productdomain.Product{
		ID:       f.node.Generate(),
		OrgID:    f.account.OrgID,
		Name:     name,
		Price:    45000,
		Currency: "XAF",
		Active:   true,
	}
	assert.NoError(t, f.db.Create(&p).Error)
	assert.NoError(t, f.db.Create(&productdomain.AccountProduct{
		ID:        f.node.Generate(),
		AccountID: f.account.ID,
		ProductID: p.ID,
	}).Error)
	return p
}

func (f *fixture) inbound(content string) Inbound {
	return Inbound{
		Account:      f.account,
		Conversation: f.conv,
		Content:      content,
		ExternalID:   "wamid.1",
	}
}

func TestSkipWhenConfigMissing(t *testing.T) {
	f := setup(t)

	out, err := f.orch.Process(context.Background(), f.inbound("hi"))
	assert.NoError(t, err)
	assert.True(t, out.Processed)
	assert.Equal(t, SkipAIDisabled, out.SkipReason)
	assert.Equal(t, 0, f.invoker.calls)
}

func TestSkipWhenDisabled(t *testing.T) {
	f := setup(t)
	disabled := false
	f.enableAI(t, func(req *chatdomain.UpdateConfigRequest) { req.Enabled = &disabled })

	out, err := f.orch.Process(context.Background(), f.inbound("hi"))
	assert.NoError(t, err)
	assert.Equal(t, SkipAIDisabled, out.SkipReason)
	assert.Equal(t, 0, f.invoker.calls)
}

func TestSkipOnIgnoreWord(t *testing.T) {
	f := setup(t)
	f.enableAI(t, func(req *chatdomain.UpdateConfigRequest) {
		req.IgnoreWords = []string{"unsubscribe"}
	})
	f.openCycle(t, 10)

	out, err := f.orch.Process(context.Background(), f.inbound("please UNSUBSCRIBE me"))
	assert.NoError(t, err)
	assert.Equal(t, SkipIgnoreWord, out.SkipReason)
	assert.Equal(t, 0, f.invoker.calls)
}

func TestSkipWithoutTriggerWord(t *testing.T) {
	f := setup(t)
	f.enableAI(t, func(req *chatdomain.UpdateConfigRequest) {
		req.TriggerWords = []string{"price", "stock"}
	})
	f.openCycle(t, 10)

	out, err := f.orch.Process(context.Background(), f.inbound("good morning"))
	assert.NoError(t, err)
	assert.Equal(t, SkipNoTrigger, out.SkipReason)

	// The same config answers once a trigger word appears.
	f.invoker.completion = aiprovider.Completion{Text: "in stock", Model: "gpt-4o-mini"}
	out, err = f.orch.Process(context.Background(), f.inbound("what is the PRICE?"))
	assert.NoError(t, err)
	assert.True(t, out.HasAIResponse)
	assert.Equal(t, 1, f.invoker.calls)
}

func TestIgnoreWordWinsOverTrigger(t *testing.T) {
	f := setup(t)
	f.enableAI(t, func(req *chatdomain.UpdateConfigRequest) {
		req.TriggerWords = []string{"price"}
		req.IgnoreWords = []string{"stop"}
	})
	f.openCycle(t, 10)

	out, err := f.orch.Process(context.Background(), f.inbound("stop sending price lists"))
	assert.NoError(t, err)
	assert.Equal(t, SkipIgnoreWord, out.SkipReason)
}

func TestSkipWhenHumanRepliedLast(t *testing.T) {
	f := setup(t)
	stop := true
	f.enableAI(t, func(req *chatdomain.UpdateConfigRequest) { req.StopOnHumanReply = &stop })
	f.openCycle(t, 10)

	// A human operator answered most recently.
	assert.NoError(t, f.store.AppendMessage(context.Background(), &convdomain.Message{
		ConversationID: f.conv.ID,
		Direction:      convdomain.DirectionOutbound,
		Kind:           convdomain.KindPlain,
		Content:        "let me check for you",
		IsAIGenerated:  false,
	}))

	out, err := f.orch.Process(context.Background(), f.inbound("any update?"))
	assert.NoError(t, err)
	assert.Equal(t, SkipHumanActive, out.SkipReason)
	assert.Equal(t, 0, f.invoker.calls)
}

func TestAIReplyAfterHumanDoesNotBlock(t *testing.T) {
	f := setup(t)
	stop := true
	f.enableAI(t, func(req *chatdomain.UpdateConfigRequest) { req.StopOnHumanReply = &stop })
	f.openCycle(t, 10)

	base := time.Now().UTC().Add(-time.Hour)
	assert.NoError(t, f.store.AppendMessage(context.Background(), &convdomain.Message{
		ConversationID: f.conv.ID,
		Direction:      convdomain.DirectionOutbound,
		Content:        "human here",
		CreatedAt:      base,
	}))
	assert.NoError(t, f.store.AppendMessage(context.Background(), &convdomain.Message{
		ConversationID: f.conv.ID,
		Direction:      convdomain.DirectionOutbound,
		Content:        "automated follow up",
		IsAIGenerated:  true,
		CreatedAt:      base.Add(time.Minute),
	}))

	f.invoker.completion = aiprovider.Completion{Text: "hello", Model: "gpt-4o-mini"}
	out, err := f.orch.Process(context.Background(), f.inbound("hi"))
	assert.NoError(t, err)
	assert.True(t, out.HasAIResponse)
}

func TestCapacityRefusal(t *testing.T) {
	f := setup(t)
	f.enableAI(t, nil)
	// No cycle at all.

	out, err := f.orch.Process(context.Background(), f.inbound("hi"))
	assert.NoError(t, err)
	assert.False(t, out.Processed)
	assert.Equal(t, SkipCapacityRefused, out.SkipReason)
	assert.False(t, out.HasAIResponse)
	assert.Equal(t, 0, f.invoker.calls)
}

func TestCapacityRefusalSendsConfiguredFallback(t *testing.T) {
	f := setup(t)
	fallback := "We are currently unavailable, please try again later."
	f.enableAI(t, func(req *chatdomain.UpdateConfigRequest) { req.FallbackText = &fallback })
	f.openCycle(t, 0)

	out, err := f.orch.Process(context.Background(), f.inbound("hi"))
	assert.NoError(t, err)
	assert.False(t, out.Processed)
	assert.Equal(t, SkipCapacityRefused, out.SkipReason)
	assert.True(t, out.HasAIResponse)
	assert.True(t, out.FallbackUsed)
	assert.Equal(t, fallback, out.AIResponse)
	assert.Equal(t, 0, f.invoker.calls)
}

func TestCapacityRefusalExhaustedQuotaNoWallet(t *testing.T) {
	f := setup(t)
	f.enableAI(t, nil)
	f.openCycle(t, 0)

	out, err := f.orch.Process(context.Background(), f.inbound("hi"))
	assert.NoError(t, err)
	assert.False(t, out.Processed)
	assert.Equal(t, SkipCapacityRefused, out.SkipReason)
}

func TestAnswerWithProducts(t *testing.T) {
	f := setup(t)
	f.enableAI(t, nil)
	f.openCycle(t, 10)
	p := f.linkProduct(t, "Air Max")
	bogus := f.node.Generate()

	f.invoker.completion = aiprovider.Completion{
		Text:             fmt.Sprintf(`{"message": "Here you go", "action": "show_products", "products": ["%s", "%s", "not-a-snowflake"]}`, p.ID, bogus),
		Model:            "gpt-4o-mini",
		PromptTokens:     120,
		CompletionTokens: 30,
		CostUSD:          0.0002,
	}

	out, err := f.orch.Process(context.Background(), f.inbound("show me sneakers"))
	assert.NoError(t, err)
	assert.True(t, out.Processed)
	assert.True(t, out.HasAIResponse)
	assert.Equal(t, "Here you go", out.AIResponse)
	assert.Len(t, out.Products, 1)
	assert.Equal(t, p.ID, out.Products[0].ProductID)
	assert.Equal(t, 120, out.PromptTokens)
	assert.Equal(t, 30, out.CompletionTokens)
	assert.Equal(t, "gpt-4o-mini", out.Model)
	assert.Equal(t, "gpt-4o-mini", f.invoker.lastReq.Model)

	// The catalog made it into the system prompt.
	assert.Contains(t, f.invoker.lastReq.Turns[0].Content, p.ID.String())
}

func TestAccountModelOverridesDefault(t *testing.T) {
	f := setup(t)
	model := "gpt-4.1"
	f.enableAI(t, func(req *chatdomain.UpdateConfigRequest) { req.Model = &model })
	f.openCycle(t, 10)

	f.invoker.completion = aiprovider.Completion{Text: "hi", Model: model}
	_, err := f.orch.Process(context.Background(), f.inbound("hello"))
	assert.NoError(t, err)
	assert.Equal(t, "gpt-4.1", f.invoker.lastReq.Model)
}

func TestProviderFailureWithFallback(t *testing.T) {
	f := setup(t)
	fallback := "We will get back to you shortly."
	f.enableAI(t, func(req *chatdomain.UpdateConfigRequest) { req.FallbackText = &fallback })
	f.openCycle(t, 10)

	f.invoker.err = aiprovider.ErrTimeout
	out, err := f.orch.Process(context.Background(), f.inbound("hi"))
	assert.NoError(t, err)
	assert.True(t, out.Processed)
	assert.True(t, out.HasAIResponse)
	assert.True(t, out.FallbackUsed)
	assert.Equal(t, fallback, out.AIResponse)
	assert.NotEmpty(t, out.Error)
}

func TestProviderFailureWithoutFallbackStaysSilent(t *testing.T) {
	f := setup(t)
	f.enableAI(t, nil)
	f.openCycle(t, 10)

	f.invoker.err = aiprovider.ErrProvider
	out, err := f.orch.Process(context.Background(), f.inbound("hi"))
	assert.NoError(t, err)
	assert.True(t, out.Processed)
	assert.False(t, out.HasAIResponse)
	assert.False(t, out.FallbackUsed)
	assert.NotEmpty(t, out.Error)
}

func TestPlainTextReply(t *testing.T) {
	f := setup(t)
	f.enableAI(t, nil)
	f.openCycle(t, 10)

	f.invoker.completion = aiprovider.Completion{Text: "Sure, 45000 XAF.", Model: "gpt-4o-mini"}
	out, err := f.orch.Process(context.Background(), f.inbound("how much?"))
	assert.NoError(t, err)
	assert.True(t, out.HasAIResponse)
	assert.Equal(t, "Sure, 45000 XAF.", out.AIResponse)
	assert.Empty(t, out.Products)
}

func TestSimulateSkipsDelay(t *testing.T) {
	f := setup(t)
	delay := 30
	f.enableAI(t, func(req *chatdomain.UpdateConfigRequest) { req.ResponseDelaySeconds = &delay })
	f.openCycle(t, 10)

	f.invoker.completion = aiprovider.Completion{Text: "hi", Model: "gpt-4o-mini"}

	start := time.Now()
	out, err := f.orch.Simulate(context.Background(), f.inbound("hello"))
	assert.NoError(t, err)
	assert.True(t, out.HasAIResponse)
	assert.Less(t, time.Since(start), 5*time.Second)
}
