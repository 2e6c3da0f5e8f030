package webhooks

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/ShipRecon/internal/broker/messages"
	"github.com/BearBump/ShipRecon/internal/normalizer"
	"github.com/BearBump/ShipRecon/internal/services/reconcile"
)

type fakeProcessor struct {
	mu      sync.Mutex
	got     []normalizer.Notification
	ctxErrs []error
	release chan struct{}
	panics  bool
	err     error
}

func (p *fakeProcessor) ProcessNotification(ctx context.Context, n normalizer.Notification) (reconcile.BatchResult, error) {
	if p.release != nil {
		<-p.release
	}
	p.mu.Lock()
	p.got = append(p.got, n)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	p.mu.Unlock()
	if p.panics {
		panic("boom")
	}
	return reconcile.BatchResult{Events: 1, Stored: 1}, p.err
}

func (p *fakeProcessor) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

type fakePublisher struct {
	key, value []byte
	err        error
}

func (p *fakePublisher) Publish(ctx context.Context, key, value []byte) error {
	p.key, p.value = key, value
	return p.err
}

func shipNotify() normalizer.Notification {
	return normalizer.Notification{
		ResourceType: normalizer.TagShipNotify,
		ResourceURL:  "https://ssapi.shipstation.com/shipments?batchId=1",
	}
}

func TestReceive_LocalAcksBeforeProcessing(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	local := NewLocal(proc)
	svc := New(local)

	ctx, cancel := context.WithCancel(context.Background())
	msg := svc.Receive(ctx, shipNotify())
	require.NotEqual(t, uuid.Nil, msg.DeliveryID)
	require.Equal(t, normalizer.TagShipNotify, msg.ResourceType)
	require.Zero(t, proc.calls())

	// the response is written and the request context goes away
	cancel()
	close(proc.release)
	local.Wait()

	require.Equal(t, 1, proc.calls())
	require.Equal(t, shipNotify(), proc.got[0])
	require.NoError(t, proc.ctxErrs[0])
}

func TestProcess_ContainsPanicAndErrors(t *testing.T) {
	msg := messages.WebhookReceived{DeliveryID: uuid.New(), ResourceType: normalizer.TagShipNotify, ResourceURL: "u"}

	require.NotPanics(t, func() { Process(context.Background(), &fakeProcessor{panics: true}, msg) })
	require.NotPanics(t, func() { Process(context.Background(), &fakeProcessor{err: errors.New("fetch failed")}, msg) })
}

func TestProcess_UnsupportedSkipped(t *testing.T) {
	proc := &fakeProcessor{}
	Process(context.Background(), proc, messages.WebhookReceived{ResourceType: "ORDER_NOTIFY", ResourceURL: "u"})
	require.Zero(t, proc.calls())
}

func TestKafka_PublishesKeyedJSON(t *testing.T) {
	pub := &fakePublisher{}
	svc := New(NewKafka(pub, nil))
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	msg := svc.Receive(context.Background(), shipNotify())
	require.Equal(t, msg.DeliveryID.String(), string(pub.key))

	var got messages.WebhookReceived
	require.NoError(t, json.Unmarshal(pub.value, &got))
	require.Equal(t, msg, got)
}

func TestKafka_FallbackOnPublishError(t *testing.T) {
	proc := &fakeProcessor{}
	local := NewLocal(proc)
	k := NewKafka(&fakePublisher{err: errors.New("broker down")}, local)

	require.NoError(t, k.Handoff(context.Background(), messages.WebhookReceived{
		DeliveryID: uuid.New(), ResourceType: normalizer.TagLabelCreatedV2, ResourceURL: "u",
	}))
	local.Wait()
	require.Equal(t, 1, proc.calls())

	err := NewKafka(&fakePublisher{err: errors.New("broker down")}, nil).
		Handoff(context.Background(), messages.WebhookReceived{})
	require.Error(t, err)
}

func TestMessageHandler(t *testing.T) {
	proc := &fakeProcessor{}
	h := MessageHandler(proc)

	require.NoError(t, h(context.Background(), []byte("k"), []byte("{not json")))
	require.Zero(t, proc.calls())

	b, err := json.Marshal(messages.WebhookReceived{
		DeliveryID: uuid.New(), ResourceType: normalizer.TagShipNotify, ResourceURL: "u",
	})
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), []byte("k"), b))
	require.Equal(t, 1, proc.calls())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, h(ctx, []byte("k"), b), context.Canceled)
}
