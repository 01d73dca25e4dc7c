package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"marketplace_backend/internal/domain"
	"marketplace_backend/internal/email"
	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/notificationtest"
	"marketplace_backend/internal/notification/outbox"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
)

type dispatcherFixture struct {
	store    *inapp.MemoryStore
	queue    *outbox.MemoryStore
	recorder *notificationtest.Recorder
	d        *Dispatcher
}

func newDispatcherFixture() *dispatcherFixture {
	f := &dispatcherFixture{
		store:    inapp.NewMemoryStore(),
		queue:    outbox.NewMemoryStore(),
		recorder: &notificationtest.Recorder{},
	}
	f.d = NewDispatcher(f.store, f.queue, f.recorder, nil, logger.New("test"))
	return f
}

func quoteAccepted(recipient uuid.UUID, quoteID uuid.UUID) Emission {
	return Emission{
		Kind:          domain.KindQuoteAccepted,
		RecipientID:   recipient,
		ReferenceKind: domain.RefQuote,
		ReferenceID:   quoteID,
		Payload:       map[string]any{PayloadPriceCents: int64(8000)},
	}
}

func TestEmitDeliversOnceAndCoalescesDuplicates(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	e := quoteAccepted(uuid.New(), uuid.New())

	first := f.d.Emit(ctx, e)
	if first.Outcome != OutcomeDelivered || first.Err != nil {
		t.Fatalf("expected delivered, got %+v", first)
	}
	second := f.d.Emit(ctx, e)
	if second.Outcome != OutcomeCoalesced {
		t.Fatalf("expected coalesced, got %s", second.Outcome)
	}
	if second.NotificationID != first.NotificationID {
		t.Fatalf("coalesced emission must return the stored notification")
	}

	if got := f.recorder.Count(e.RecipientID, domain.KindQuoteAccepted); got != 1 {
		t.Fatalf("expected one delivery, got %d", got)
	}
	if len(f.store.All()) != 1 {
		t.Fatalf("expected one stored notification, got %d", len(f.store.All()))
	}
	stored, _ := f.store.GetByID(ctx, first.NotificationID)
	if stored.DeliveredAt == nil {
		t.Fatalf("expected delivered_at to be set")
	}
}

func TestEmitQueuesFailedDelivery(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	f.recorder.SetFailing(true)

	e := quoteAccepted(uuid.New(), uuid.New())
	res := f.d.Emit(ctx, e)
	if res.Outcome != OutcomeQueued || res.Err != nil {
		t.Fatalf("expected queued without error, got %+v", res)
	}

	records := f.queue.Records()
	if len(records) != 1 || records[0].NotificationID != res.NotificationID {
		t.Fatalf("expected one outbox row for the notification, got %+v", records)
	}
	if records[0].LastError == nil || *records[0].LastError != notificationtest.ErrDeliveryDown.Error() {
		t.Fatalf("expected last error to be recorded")
	}

	stored, _ := f.store.GetByID(ctx, res.NotificationID)
	if stored.DeliveredAt != nil {
		t.Fatalf("undelivered notification must not be marked delivered")
	}

	if res := f.d.Emit(ctx, e); res.Outcome != OutcomeCoalesced {
		t.Fatalf("retrying the transition must not deliver twice, got %s", res.Outcome)
	}
}

type downOutbox struct {
	*outbox.MemoryStore
	mu   sync.Mutex
	down bool
}

func (o *downOutbox) setDown(down bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.down = down
}

func (o *downOutbox) Enqueue(ctx context.Context, notificationID uuid.UUID, lastError string) (uuid.UUID, error) {
	o.mu.Lock()
	down := o.down
	o.mu.Unlock()
	if down {
		return uuid.Nil, errors.New("outbox down")
	}
	return o.MemoryStore.Enqueue(ctx, notificationID, lastError)
}

func TestReEmitQueuesNotificationWhoseRetryWasLost(t *testing.T) {
	store := inapp.NewMemoryStore()
	queue := &downOutbox{MemoryStore: outbox.NewMemoryStore(), down: true}
	recorder := &notificationtest.Recorder{}
	recorder.SetFailing(true)
	d := NewDispatcher(store, queue, recorder, nil, logger.New("test"))
	ctx := context.Background()
	e := quoteAccepted(uuid.New(), uuid.New())

	first := d.Emit(ctx, e)
	if first.Outcome != OutcomeFailed || first.Err == nil {
		t.Fatalf("expected failure when neither delivery nor outbox work, got %+v", first)
	}
	if len(queue.Records()) != 0 {
		t.Fatalf("expected no outbox row yet")
	}

	queue.setDown(false)
	recorder.SetFailing(false)
	retry := d.Emit(ctx, e)
	if retry.Outcome != OutcomeCoalesced || retry.Err != nil {
		t.Fatalf("expected coalesced retry, got %+v", retry)
	}
	records := queue.Records()
	if len(records) != 1 || records[0].NotificationID != first.NotificationID || records[0].Status != outbox.StatusPending {
		t.Fatalf("expected the undelivered notification to be queued, got %+v", records)
	}

	if err := d.Redeliver(ctx, records[0].NotificationID); err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if got := recorder.Count(e.RecipientID, e.Kind); got != 1 {
		t.Fatalf("expected one delivery after redelivery, got %d", got)
	}
	if len(queue.Records()) != 1 {
		t.Fatalf("re-emitting must not add outbox rows")
	}
	if res := d.Emit(ctx, e); res.Outcome != OutcomeCoalesced {
		t.Fatalf("expected coalesced once delivered, got %s", res.Outcome)
	}
}

func TestRedeliverMarksDelivered(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	f.recorder.SetFailing(true)
	res := f.d.Emit(ctx, quoteAccepted(uuid.New(), uuid.New()))

	if err := f.d.Redeliver(ctx, res.NotificationID); !errors.Is(err, notificationtest.ErrDeliveryDown) {
		t.Fatalf("expected delivery error while channel is down, got %v", err)
	}

	f.recorder.SetFailing(false)
	if err := f.d.Redeliver(ctx, res.NotificationID); err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if err := f.d.Redeliver(ctx, res.NotificationID); err != nil {
		t.Fatalf("redeliver of a delivered notification must be a no-op: %v", err)
	}
	if len(f.recorder.Delivered()) != 1 {
		t.Fatalf("expected exactly one successful delivery, got %d", len(f.recorder.Delivered()))
	}

	if err := f.d.Redeliver(ctx, uuid.New()); !errors.Is(err, inapp.ErrNotificationNotFound) {
		t.Fatalf("expected not found for unknown notification, got %v", err)
	}
}

func TestEmitRejectsIncompleteEmission(t *testing.T) {
	f := newDispatcherFixture()
	res := f.d.Emit(context.Background(), Emission{Kind: domain.KindQuoteRejected, ReferenceKind: domain.RefQuote, ReferenceID: uuid.New()})
	if res.Outcome != OutcomeFailed || res.Err == nil {
		t.Fatalf("expected failure for missing recipient, got %+v", res)
	}
	if len(f.store.All()) != 0 {
		t.Fatalf("nothing must be stored")
	}
}

type flakyStore struct {
	*inapp.MemoryStore
	failFor uuid.UUID
}

func (s flakyStore) Insert(ctx context.Context, n inapp.Notification) (inapp.Notification, bool, error) {
	if n.RecipientID == s.failFor {
		return inapp.Notification{}, false, errors.New("connection reset")
	}
	return s.MemoryStore.Insert(ctx, n)
}

func TestEmitAllDedupsAndReportsPartialFailure(t *testing.T) {
	store := inapp.NewMemoryStore()
	broken := uuid.New()
	recorder := &notificationtest.Recorder{}
	d := NewDispatcher(flakyStore{MemoryStore: store, failFor: broken}, outbox.NewMemoryStore(), recorder, nil, logger.New("test"))
	d.SetParallelism(2)

	quoteID := uuid.New()
	winner := uuid.New()
	emissions := []Emission{
		quoteAccepted(winner, quoteID),
		quoteAccepted(winner, quoteID),
		{Kind: domain.KindQuoteRejected, RecipientID: uuid.New(), ReferenceKind: domain.RefQuote, ReferenceID: uuid.New()},
		{Kind: domain.KindRequestNoLongerAvailable, RecipientID: broken, ReferenceKind: domain.RefRequest, ReferenceID: uuid.New()},
	}

	report := d.EmitAll(context.Background(), emissions)
	if len(report.Results) != 3 {
		t.Fatalf("expected duplicate to be collapsed, got %d results", len(report.Results))
	}
	if report.Count(OutcomeDelivered) != 2 || report.Count(OutcomeFailed) != 1 {
		t.Fatalf("unexpected outcomes %+v", report.Results)
	}
	if report.Err() == nil {
		t.Fatalf("expected joined error for the failed emission")
	}
	if recorder.Count(winner, domain.KindQuoteAccepted) != 1 {
		t.Fatalf("winner must be notified once")
	}
}

func TestEmitAllConcurrentTransitionsStoreOnce(t *testing.T) {
	f := newDispatcherFixture()
	e := quoteAccepted(uuid.New(), uuid.New())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.d.EmitAll(context.Background(), []Emission{e})
		}()
	}
	wg.Wait()

	if len(f.store.All()) != 1 {
		t.Fatalf("expected one stored notification, got %d", len(f.store.All()))
	}
	if got := f.recorder.Count(e.RecipientID, e.Kind); got != 1 {
		t.Fatalf("expected one delivery, got %d", got)
	}
}

func TestMultiJoinsChannelErrors(t *testing.T) {
	ok := &notificationtest.Recorder{}
	down := &notificationtest.Recorder{}
	down.SetFailing(true)

	n := inapp.Notification{ID: uuid.New(), RecipientID: uuid.New(), Kind: domain.KindJobCancelled}
	err := Multi{ok, down}.Deliver(context.Background(), n)
	if !errors.Is(err, notificationtest.ErrDeliveryDown) {
		t.Fatalf("expected joined channel error, got %v", err)
	}
	if len(ok.Delivered()) != 1 {
		t.Fatalf("healthy channel must still deliver")
	}
	if err := (Multi{}).Deliver(context.Background(), n); err != nil {
		t.Fatalf("empty multi must succeed, got %v", err)
	}
}

type stubResolver map[uuid.UUID]string

func (r stubResolver) EmailAddress(_ context.Context, userID uuid.UUID) (string, bool) {
	addr, ok := r[userID]
	return addr, ok
}

type captureSender struct {
	sent []email.Message
	err  error
}

func (s *captureSender) SendNotificationEmail(_ context.Context, msg email.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestEmailDeliverySkipsRecipientsWithoutAddress(t *testing.T) {
	known := uuid.New()
	sender := &captureSender{}
	d := NewEmailDelivery(sender, stubResolver{known: "pat@example.com"})

	n := inapp.Notification{RecipientID: known, Title: "Job completed", Body: "Please rate", Payload: map[string]any{payloadLink: "https://app.example/jobs/1"}}
	if err := d.Deliver(context.Background(), n); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "pat@example.com" || sender.sent[0].CTAURL != "https://app.example/jobs/1" {
		t.Fatalf("unexpected message %+v", sender.sent)
	}

	n.RecipientID = uuid.New()
	if err := d.Deliver(context.Background(), n); err != nil {
		t.Fatalf("unknown recipient must be skipped, got %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected no extra email")
	}

	sender.err = errors.New("smtp down")
	n.RecipientID = known
	if err := d.Deliver(context.Background(), n); err == nil {
		t.Fatalf("expected smtp failure to surface")
	}
}
