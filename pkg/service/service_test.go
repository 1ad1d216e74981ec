package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/storage"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/trail"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/pipeline"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/rules"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/semantic"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/delivery"
)

const compliantText = "Mutual fund investments are subject to market risks. EUIN: E123456"

type stubGateway struct {
	phones *delivery.PhoneValidator

	mu   sync.Mutex
	err  error
	sent []*delivery.Message
}

func (g *stubGateway) SendTemplate(ctx context.Context, msg *delivery.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, msg)
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("wamid.%d", len(g.sent)), nil
}

func (g *stubGateway) ValidateRecipientFormat(recipient string) (string, error) {
	return g.phones.Normalize(recipient)
}

func (g *stubGateway) GetMessageStatus(ctx context.Context, id string) (delivery.MessageStatus, error) {
	return delivery.StatusSent, nil
}

func (g *stubGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

type fixture struct {
	svc   *Service
	gw    *stubGateway
	trail *trail.Trail
	quota *delivery.MemoryQuotaStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tr := trail.New(storage.NewMemoryStorage(), trail.DefaultConfig(), logger)

	engine, err := rules.NewEngine(nil)
	require.NoError(t, err)
	p := pipeline.New(engine, semantic.Disabled(), pipeline.DefaultConfig(), logger, pipeline.WithRecorder(tr))

	gw := &stubGateway{phones: delivery.NewPhoneValidator("IN")}
	quota := delivery.NewMemoryQuotaStore()
	cfg := delivery.DefaultConfig()
	cfg.RatePerSecond = 0
	cfg.Location = time.UTC
	cfg.SenderID = "sender"
	cfg.RolloverSchedule = ""
	q, err := delivery.New(cfg, delivery.Deps{Gateway: gw, Quota: quota, Logger: logger})
	require.NoError(t, err)

	templates := delivery.NewStaticTemplateProvider([]config.TemplateConfig{
		{UseCase: DefaultUseCase, Name: "content_share_v1", Language: "en", HealthScore: 90},
	})

	svc, err := New(Deps{Pipeline: p, Trail: tr, Queue: q, Templates: templates, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	return &fixture{svc: svc, gw: gw, trail: tr, quota: quota}
}

func (f *fixture) entries(t *testing.T, action audit.Action) []*audit.Entry {
	t.Helper()
	res, err := f.trail.Query(context.Background(), audit.Query{Actions: []audit.Action{action}})
	require.NoError(t, err)
	return res.Entries
}

func (f *fixture) waitEntries(t *testing.T, action audit.Action, n int) []*audit.Entry {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.entries(t, action)) == n
	}, 5*time.Second, 5*time.Millisecond, "waiting for %d %s entries", n, action)
	return f.entries(t, action)
}

func content(id, text string) *compliance.ContentItem {
	return &compliance.ContentItem{ID: id, AdvisorID: "advisor-1", Language: "en", Text: text}
}

func TestSubmit_DeliversCompliantContent(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Submit(context.Background(), SubmitRequest{
		Item:       content("content-1", compliantText),
		Recipients: []string{"+918123456701", "+918123456702"},
	})
	require.NoError(t, err)

	assert.True(t, sub.Result.IsCompliant)
	assert.Equal(t, "content_share_v1", sub.Template)
	assert.NotEmpty(t, sub.BatchID)
	require.Len(t, sub.JobIDs, 2)

	verdicts := f.entries(t, audit.ActionContentValidated)
	require.Len(t, verdicts, 1)
	assert.Equal(t, sub.Result.ContentHash, verdicts[0].ContentHash)

	f.waitEntries(t, audit.ActionDeliveryEnqueued, 2)
	delivered := f.waitEntries(t, audit.ActionDeliveryDelivered, 2)
	for _, e := range delivered {
		assert.Equal(t, "content-1", e.ContentID)
		assert.NotEmpty(t, e.MessageID)
		assert.Equal(t, 1, e.Attempts)
		assert.False(t, e.Flagged)
	}

	f.gw.mu.Lock()
	defer f.gw.mu.Unlock()
	require.Len(t, f.gw.sent, 2)
	for _, m := range f.gw.sent {
		assert.Equal(t, "content-1", m.Metadata.ContentID)
		assert.Equal(t, compliantText, m.Template.Components[0].Parameters[0].Text)
	}
}

func TestSubmit_NonCompliantContentIsNeverEnqueued(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), SubmitRequest{
		Item:       content("content-2", "Guaranteed returns of 20% annually! No risk investment!"),
		Recipients: []string{"+918123456701"},
	})
	require.Error(t, err)

	var ve *compliance.ViolationError
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Critical())
	assert.Equal(t, 100, ve.RiskScore)

	rejected := f.waitEntries(t, audit.ActionDeliveryRejected, 1)
	assert.Equal(t, "blocked", rejected[0].DeliveryStatus)

	verdicts := f.entries(t, audit.ActionContentValidated)
	require.Len(t, verdicts, 1)
	assert.True(t, verdicts[0].Flagged)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.QuotaUsed)
	assert.Zero(t, f.gw.count())
}

func TestSubmit_ResubmissionIsDeduplicated(t *testing.T) {
	f := newFixture(t)
	req := SubmitRequest{
		Item:       content("content-3", compliantText),
		Recipients: []string{"+918123456701"},
	}

	first, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.JobIDs, second.JobIDs)

	used, err := f.quota.Used(context.Background(), "sender:"+delivery.DayKey(time.Now(), time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), used)
}

func TestSubmit_GatewayRejectionIsAudited(t *testing.T) {
	f := newFixture(t)
	f.gw.err = delivery.NewError(delivery.KindGatewayRejected, "template paused", nil)

	_, err := f.svc.Submit(context.Background(), SubmitRequest{
		Item:       content("content-4", compliantText),
		Recipients: []string{"+918123456701"},
	})
	require.NoError(t, err)

	rejected := f.waitEntries(t, audit.ActionDeliveryRejected, 1)
	assert.Equal(t, string(delivery.KindGatewayRejected), rejected[0].ErrorKind)
	assert.Contains(t, rejected[0].Error, "template paused")
}

func TestSubmit_QuotaExhaustionIsAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	limit := delivery.DefaultConfig().DailyLimit
	_, err := f.quota.Reserve(ctx, "sender:"+delivery.DayKey(time.Now(), time.UTC), limit, limit)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, SubmitRequest{
		Item:       content("content-quota", compliantText),
		Recipients: []string{"+918123456701", "+918123456702"},
	})
	require.ErrorIs(t, err, delivery.ErrQuotaExceeded)

	rejected := f.waitEntries(t, audit.ActionDeliveryRejected, 2)
	deliveries := make(map[string]bool)
	for _, e := range rejected {
		assert.Equal(t, "content-quota", e.ContentID)
		assert.Equal(t, string(delivery.KindQuotaExceeded), e.ErrorKind)
		assert.Equal(t, string(delivery.KindQuotaExceeded), e.DeliveryStatus)
		assert.NotEmpty(t, e.ContentHash)
		deliveries[e.DeliveryID] = true
	}
	assert.Len(t, deliveries, 2)
	assert.Empty(t, f.entries(t, audit.ActionDeliveryEnqueued))
	assert.Zero(t, f.gw.count())
}

func TestSubmit_InvalidRecipientInBatchIsAudited(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Submit(context.Background(), SubmitRequest{
		Item:       content("content-batch", compliantText),
		Recipients: []string{"+918123456701", "12345"},
	})
	require.NoError(t, err)
	require.Len(t, sub.Rejected, 1)
	assert.Equal(t, 1, sub.Rejected[0].Index)

	rejected := f.waitEntries(t, audit.ActionDeliveryRejected, 1)
	assert.Equal(t, string(delivery.KindInvalidRecipient), rejected[0].ErrorKind)
	assert.Equal(t, DeliveryID("content-batch", sub.Result.ContentHash, "12345"), rejected[0].DeliveryID)

	f.waitEntries(t, audit.ActionDeliveryEnqueued, 1)
	f.waitEntries(t, audit.ActionDeliveryDelivered, 1)
}

func TestSubmit_UnknownUseCase(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), SubmitRequest{
		Item:       content("content-5", compliantText),
		Recipients: []string{"+918123456701"},
		UseCase:    "festival_greeting",
	})
	assert.ErrorIs(t, err, delivery.ErrNoTemplate)
	assert.Zero(t, f.gw.count())
}

func TestSubmit_RequiresRecipients(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), SubmitRequest{Item: content("content-6", compliantText)})
	assert.Error(t, err)
}

func TestDeliveryID_IsStable(t *testing.T) {
	a := DeliveryID("c1", "hash", "+918123456701")
	assert.Equal(t, a, DeliveryID("c1", "hash", "+918123456701"))
	assert.NotEqual(t, a, DeliveryID("c1", "hash", "+918123456702"))
	assert.NotEqual(t, a, DeliveryID("c1", "other", "+918123456701"))
}
