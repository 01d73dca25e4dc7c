package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"marketplace_backend/internal/domain"
	"marketplace_backend/internal/events"
	jobrepo "marketplace_backend/internal/jobs/repository"
	jobsvc "marketplace_backend/internal/jobs/service"
	"marketplace_backend/internal/notification"
	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/notificationtest"
	"marketplace_backend/internal/notification/outbox"
	quoterepo "marketplace_backend/internal/quotes/repository"
	quotesvc "marketplace_backend/internal/quotes/service"
	ratingrepo "marketplace_backend/internal/ratings/repository"
	ratingsvc "marketplace_backend/internal/ratings/service"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/lock"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
)

type fixture struct {
	svc      *Service
	quotes   *quotesvc.Service
	recorder *notificationtest.Recorder
	queue    *outbox.MemoryStore
	bus      *events.InMemoryBus

	mu       sync.Mutex
	received []string
}

func newFixture(t *testing.T, locker lock.Locker) *fixture {
	t.Helper()
	log := logger.New("test")
	f := &fixture{
		quotes:   quotesvc.New(quoterepo.NewMemory(), log),
		recorder: &notificationtest.Recorder{},
		queue:    outbox.NewMemoryStore(),
		bus:      events.NewInMemoryBus(log),
	}
	dispatcher := notification.NewDispatcher(inapp.NewMemoryStore(), f.queue, f.recorder, nil, log)
	f.svc = New(locker, f.quotes, jobsvc.New(jobrepo.NewMemory(), log), ratingsvc.New(ratingrepo.NewMemory(), log), dispatcher, log)
	f.svc.SetEventBus(f.bus)
	for _, name := range events.LifecycleEventNames {
		f.bus.Subscribe(name, events.HandlerFunc(func(_ context.Context, e events.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.received = append(f.received, e.EventName())
			return nil
		}))
	}
	return f
}

func (f *fixture) published() []string {
	f.bus.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.received...)
}

func client() Actor   { return Actor{UserID: uuid.New(), Role: domain.RoleClient} }
func provider() Actor { return Actor{UserID: uuid.New(), Role: domain.RoleProvider} }

func (f *fixture) openRequest(t *testing.T, owner Actor) quoterepo.ServiceRequest {
	t.Helper()
	req, err := f.svc.CreateRequest(context.Background(), owner, CreateRequestInput{
		ServiceID:   uuid.New(),
		Description: "Replace bathroom extractor fan",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func (f *fixture) bid(t *testing.T, p Actor, requestID uuid.UUID, price int64) quoterepo.Quote {
	t.Helper()
	q, err := f.svc.SubmitQuote(context.Background(), p, requestID, SubmitQuoteInput{PriceCents: price, EstimatedMinutes: 60})
	if err != nil {
		t.Fatalf("submit quote: %v", err)
	}
	return q
}

func TestAcceptQuoteFansOutToEveryInvitee(t *testing.T) {
	f := newFixture(t, lock.NewKeyedMutex())
	ctx := context.Background()
	owner, a, b, d := client(), provider(), provider(), provider()

	req := f.openRequest(t, owner)
	if _, err := f.svc.InviteProviders(ctx, owner, req.ID, []uuid.UUID{a.UserID, b.UserID, d.UserID}); err != nil {
		t.Fatalf("invite: %v", err)
	}
	qa := f.bid(t, a, req.ID, 10000)
	qb := f.bid(t, b, req.ID, 8000)

	out, err := f.svc.AcceptQuote(ctx, owner, req.ID, qb.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if out.Job.PriceCents != 8000 || out.Job.ProviderID != b.UserID || out.Job.Status != domain.JobScheduled {
		t.Fatalf("unexpected job %+v", out.Job)
	}
	if len(out.Rejected) != 1 || out.Rejected[0].ID != qa.ID {
		t.Fatalf("expected only quote A rejected, got %+v", out.Rejected)
	}

	checks := []struct {
		who  uuid.UUID
		kind domain.NotificationKind
	}{
		{b.UserID, domain.KindQuoteAccepted},
		{a.UserID, domain.KindQuoteRejected},
		{d.UserID, domain.KindRequestNoLongerAvailable},
	}
	for _, c := range checks {
		if n := f.recorder.Count(c.who, c.kind); n != 1 {
			t.Errorf("expected one %s, got %d", c.kind, n)
		}
	}
	if n := f.recorder.Count(a.UserID, domain.KindRequestNoLongerAvailable); n != 0 {
		t.Errorf("a rejected bidder must not also be told the request is gone")
	}
	if n := f.recorder.Count(owner.UserID, domain.KindNewQuoteReceived); n != 2 {
		t.Errorf("expected the client to hear about both quotes, got %d", n)
	}

	if got := f.published(); !slices.Contains(got, "quote.accepted") {
		t.Fatalf("expected quote.accepted to be published, got %v", got)
	}
}

func TestConcurrentAcceptsCreateOneJob(t *testing.T) {
	f := newFixture(t, lock.NewKeyedMutex())
	ctx := context.Background()
	owner := client()
	req := f.openRequest(t, owner)

	quotes := make([]quoterepo.Quote, 0, 6)
	for i := 0; i < 6; i++ {
		quotes = append(quotes, f.bid(t, provider(), req.ID, int64(5000+i)))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		jobs []uuid.UUID
	)
	for _, q := range quotes {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			out, err := f.svc.AcceptQuote(ctx, owner, req.ID, id)
			if err != nil {
				if !errors.Is(err, domain.ErrQuoteNotOpen) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			mu.Lock()
			jobs = append(jobs, out.Job.ID)
			mu.Unlock()
		}(q.ID)
	}
	wg.Wait()

	if len(jobs) != 1 {
		t.Fatalf("expected exactly one winning accept, got %d", len(jobs))
	}
	listed, err := f.svc.ListJobs(ctx, owner)
	if err != nil || len(listed) != 1 {
		t.Fatalf("expected one job for the client, got %d (%v)", len(listed), err)
	}
}

func TestSubmitRacingAcceptLeavesNoOpenQuote(t *testing.T) {
	f := newFixture(t, lock.NewKeyedMutex())
	ctx := context.Background()
	owner := client()
	req := f.openRequest(t, owner)
	first := f.bid(t, provider(), req.ID, 9000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SubmitQuote(ctx, provider(), req.ID, SubmitQuoteInput{PriceCents: 7000, EstimatedMinutes: 45})
			if err != nil && !errors.Is(err, domain.ErrRequestNotOpen) {
				t.Errorf("unexpected submit error: %v", err)
			}
		}()
	}
	if _, err := f.svc.AcceptQuote(ctx, owner, req.ID, first.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	wg.Wait()

	all, err := f.svc.ListQuotes(ctx, owner, req.ID)
	if err != nil {
		t.Fatalf("list quotes: %v", err)
	}
	for _, q := range all {
		if q.Status == domain.QuoteOpen {
			t.Fatalf("quote %s is still open after accept", q.ID)
		}
	}
}

func TestAcceptRetryCompletesMissingJob(t *testing.T) {
	f := newFixture(t, lock.NewKeyedMutex())
	ctx := context.Background()
	owner, winner := client(), provider()
	req := f.openRequest(t, owner)
	q := f.bid(t, winner, req.ID, 8000)
	loser := f.bid(t, provider(), req.ID, 9500)

	// The ledger committed but the job was never created.
	if _, err := f.quotes.AcceptQuote(ctx, req.ID, q.ID); err != nil {
		t.Fatalf("ledger accept: %v", err)
	}

	out, err := f.svc.AcceptQuote(ctx, owner, req.ID, q.ID)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if out.Job.QuoteID != q.ID || len(out.Rejected) != 1 || out.Rejected[0].ID != loser.ID {
		t.Fatalf("unexpected recovered outcome %+v", out)
	}

	again, err := f.svc.AcceptQuote(ctx, owner, req.ID, q.ID)
	if !errors.Is(err, domain.ErrQuoteNotOpen) {
		t.Fatalf("expected ErrQuoteNotOpen once the job exists, got %v (%+v)", err, again)
	}
	if n := f.recorder.Count(winner.UserID, domain.KindQuoteAccepted); n != 1 {
		t.Fatalf("expected one acceptance notice, got %d", n)
	}
}

func TestDeliveryOutageDoesNotFailTransition(t *testing.T) {
	f := newFixture(t, lock.NewKeyedMutex())
	ctx := context.Background()
	owner, p := client(), provider()
	req := f.openRequest(t, owner)

	f.recorder.SetFailing(true)
	q, err := f.svc.SubmitQuote(ctx, p, req.ID, SubmitQuoteInput{PriceCents: 4200, EstimatedMinutes: 30})
	if err != nil {
		t.Fatalf("submit must succeed while delivery is down: %v", err)
	}
	if q.Status != domain.QuoteOpen {
		t.Fatalf("unexpected quote status %s", q.Status)
	}

	records := f.queue.Records()
	if len(records) != 1 || records[0].Status != outbox.StatusPending {
		t.Fatalf("expected one pending redelivery, got %+v", records)
	}
}

func TestJobLifecycleThroughRating(t *testing.T) {
	f := newFixture(t, lock.NewKeyedMutex())
	ctx := context.Background()
	owner, p := client(), provider()
	req := f.openRequest(t, owner)
	q := f.bid(t, p, req.ID, 12000)
	out, err := f.svc.AcceptQuote(ctx, owner, req.ID, q.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	jobID := out.Job.ID

	if _, err := f.svc.StartJob(ctx, owner, jobID); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("only the provider may start, got %v", err)
	}
	job, err := f.svc.StartJob(ctx, p, jobID)
	if err != nil || job.Status != domain.JobInProgress {
		t.Fatalf("start: %v %s", err, job.Status)
	}

	if _, _, err := f.svc.Rate(ctx, owner, jobID, RateInput{Score: 5}); !errors.Is(err, domain.ErrJobNotCompleted) {
		t.Fatalf("expected ErrJobNotCompleted, got %v", err)
	}

	job, err = f.svc.FinalizeJob(ctx, p, jobID, []string{"jobs/after.jpg"})
	if err != nil || job.Status != domain.JobInProgress || job.ProviderFinalizedAt == nil {
		t.Fatalf("provider finalize: %v %+v", err, job)
	}
	if n := f.recorder.Count(owner.UserID, domain.KindJobFinalizedPendingConfirmation); n != 1 {
		t.Fatalf("expected confirmation request to client, got %d", n)
	}

	job, err = f.svc.FinalizeJob(ctx, owner, jobID, nil)
	if err != nil || job.Status != domain.JobCompleted {
		t.Fatalf("client finalize: %v %s", err, job.Status)
	}
	for _, who := range []uuid.UUID{owner.UserID, p.UserID} {
		if n := f.recorder.Count(who, domain.KindJobCompletedPleaseRate); n != 1 {
			t.Errorf("expected a rate prompt for %s, got %d", who, n)
		}
	}

	rating, stats, err := f.svc.Rate(ctx, owner, jobID, RateInput{Score: 4, Comment: "tidy work"})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rating.RateeID != p.UserID || rating.Direction != domain.DirectionClientToProvider {
		t.Fatalf("unexpected rating %+v", rating)
	}
	if stats.Count != 1 || stats.Average != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if _, _, err := f.svc.Rate(ctx, owner, jobID, RateInput{Score: 1}); !errors.Is(err, domain.ErrAlreadyRated) {
		t.Fatalf("expected ErrAlreadyRated, got %v", err)
	}
	if _, _, err := f.svc.Rate(ctx, p, jobID, RateInput{Score: 5}); err != nil {
		t.Fatalf("provider rating: %v", err)
	}

	ratings, err := f.svc.ListJobRatings(ctx, owner, jobID)
	if err != nil || len(ratings) != 2 {
		t.Fatalf("expected two ratings, got %d (%v)", len(ratings), err)
	}
}

func TestCancelJobRules(t *testing.T) {
	f := newFixture(t, lock.NewKeyedMutex())
	ctx := context.Background()
	owner, p := client(), provider()
	req := f.openRequest(t, owner)
	q := f.bid(t, p, req.ID, 6000)
	out, err := f.svc.AcceptQuote(ctx, owner, req.ID, q.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := f.svc.CancelJob(ctx, p, out.Job.ID, "   "); !errors.Is(err, domain.ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}

	job, err := f.svc.CancelJob(ctx, p, out.Job.ID, "van broke down")
	if err != nil || job.Status != domain.JobCancelled {
		t.Fatalf("cancel: %v %s", err, job.Status)
	}
	if n := f.recorder.Count(owner.UserID, domain.KindJobCancelled); n != 1 {
		t.Fatalf("expected the client to be told, got %d", n)
	}
	if n := f.recorder.Count(p.UserID, domain.KindJobCancelled); n != 0 {
		t.Fatalf("the canceller must not be notified")
	}

	if _, err := f.svc.CancelJob(ctx, owner, out.Job.ID, "changed my mind"); !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("expected ErrJobTerminal, got %v", err)
	}
}

func TestCancelCompletedJobChangesNothing(t *testing.T) {
	f := newFixture(t, lock.NewKeyedMutex())
	ctx := context.Background()
	owner, p := client(), provider()
	req := f.openRequest(t, owner)
	q := f.bid(t, p, req.ID, 6000)
	out, _ := f.svc.AcceptQuote(ctx, owner, req.ID, q.ID)
	if _, err := f.svc.FinalizeJob(ctx, owner, out.Job.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	f.recorder.Reset()

	for _, reason := range []string{"too late", ""} {
		if _, err := f.svc.CancelJob(ctx, p, out.Job.ID, reason); !errors.Is(err, domain.ErrJobTerminal) {
			t.Fatalf("reason %q: expected ErrJobTerminal, got %v", reason, err)
		}
	}
	job, err := f.svc.GetJob(ctx, owner, out.Job.ID)
	if err != nil || job.Status != domain.JobCompleted || job.CancelledAt != nil {
		t.Fatalf("completed job must be untouched: %v %+v", err, job)
	}
	if len(f.recorder.Delivered()) != 0 {
		t.Fatalf("a rejected cancel must not notify anyone")
	}
}

func TestAuthorization(t *testing.T) {
	f := newFixture(t, lock.NewKeyedMutex())
	ctx := context.Background()
	owner, stranger, p := client(), client(), provider()
	req := f.openRequest(t, owner)
	q := f.bid(t, p, req.ID, 5000)

	if _, err := f.svc.CreateRequest(ctx, p, CreateRequestInput{ServiceID: uuid.New(), Description: "x"}); !errors.Is(err, domain.ErrNotParticipant) {
		t.Errorf("providers cannot open requests, got %v", err)
	}
	if _, err := f.svc.CreateRequest(ctx, Actor{Role: domain.RoleClient}, CreateRequestInput{}); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("expected unauthorized for anonymous caller, got %v", err)
	}
	if _, err := f.svc.SubmitQuote(ctx, owner, req.ID, SubmitQuoteInput{PriceCents: 1, EstimatedMinutes: 1}); !errors.Is(err, domain.ErrNotParticipant) {
		t.Errorf("clients cannot quote, got %v", err)
	}
	if _, err := f.svc.AcceptQuote(ctx, stranger, req.ID, q.ID); !errors.Is(err, domain.ErrNotParticipant) {
		t.Errorf("only the owner may accept, got %v", err)
	}
	if _, err := f.svc.RejectQuote(ctx, stranger, q.ID); !errors.Is(err, domain.ErrNotParticipant) {
		t.Errorf("only the owner may reject, got %v", err)
	}
	if _, err := f.svc.GetRequest(ctx, provider(), req.ID); !errors.Is(err, domain.ErrNotParticipant) {
		t.Errorf("uninvited providers cannot read the request, got %v", err)
	}

	if _, err := f.svc.GetRequest(ctx, Actor{UserID: uuid.New(), Role: domain.RoleAdmin}, req.ID); err != nil {
		t.Errorf("admins may read any request: %v", err)
	}
	if _, err := f.svc.CancelRequest(ctx, Actor{UserID: uuid.New(), Role: domain.RoleAdmin}, req.ID); !errors.Is(err, domain.ErrNotParticipant) {
		t.Errorf("admins cannot mutate, got %v", err)
	}

	own, err := f.svc.ListQuotes(ctx, p, req.ID)
	if err != nil || len(own) != 1 {
		t.Errorf("a bidder sees their own quote: %v %d", err, len(own))
	}
}

func TestCancelRequestTellsInvitees(t *testing.T) {
	f := newFixture(t, lock.NewKeyedMutex())
	ctx := context.Background()
	owner, bidder, invited := client(), provider(), provider()
	req := f.openRequest(t, owner)
	if _, err := f.svc.InviteProviders(ctx, owner, req.ID, []uuid.UUID{invited.UserID, owner.UserID}); err != nil {
		t.Fatalf("invite: %v", err)
	}
	f.bid(t, bidder, req.ID, 3000)

	cancelled, err := f.svc.CancelRequest(ctx, owner, req.ID)
	if err != nil || cancelled.Status != domain.RequestCancelled {
		t.Fatalf("cancel: %v %s", err, cancelled.Status)
	}
	for _, who := range []uuid.UUID{bidder.UserID, invited.UserID} {
		if len(f.recorder.For(who)) == 0 {
			t.Errorf("expected %s to be notified of the cancellation", who)
		}
	}
	if n := f.recorder.Count(owner.UserID, domain.KindNewQuoteRequest); n != 0 {
		t.Errorf("the client cannot invite themselves")
	}
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string) (func(), error) {
	return nil, apperr.Unavailable("lock store unreachable", errors.New("dial tcp: connection refused"))
}

func TestLockOutageIsRetriable(t *testing.T) {
	f := newFixture(t, failingLocker{})
	ctx := context.Background()
	owner := client()
	req := f.openRequest(t, owner)

	_, err := f.svc.SubmitQuote(ctx, provider(), req.ID, SubmitQuoteInput{PriceCents: 100, EstimatedMinutes: 10})
	if !apperr.IsRetriable(err) {
		t.Fatalf("expected retriable error, got %v", err)
	}
	got, _ := f.quotes.GetRequest(ctx, req.ID)
	if got.Status != domain.RequestPending {
		t.Fatalf("nothing may change without the lock, got %s", got.Status)
	}
	if len(f.recorder.Delivered()) != 0 {
		t.Fatalf("no notification may be sent without the lock")
	}
}
