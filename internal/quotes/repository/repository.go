package repository

import (
	"context"
	"fmt"

	"marketplace_backend/internal/domain"
	"marketplace_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	requestColumns = `id, client_id, service_id, description, photo_refs, status, created_at, updated_at`
	quoteColumns   = `id, request_id, provider_id, price_cents, estimated_minutes, notes, status, created_at, updated_at`

	uqOpenQuotePerProvider = "uq_quotes_one_open_per_provider"
	uqAcceptedPerRequest   = "uq_quotes_one_accepted_per_request"
)

// Repo implements Repository on PostgreSQL. Mutations lock the request row
// with SELECT ... FOR UPDATE so they serialize across processes too.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new quote ledger repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

func scanRequest(row pgx.Row) (ServiceRequest, error) {
	var req ServiceRequest
	err := row.Scan(&req.ID, &req.ClientID, &req.ServiceID, &req.Description, &req.PhotoRefs, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	return req, err
}

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	err := row.Scan(&q.ID, &q.RequestID, &q.ProviderID, &q.PriceCents, &q.EstimatedMinutes, &q.Notes, &q.Status, &q.CreatedAt, &q.UpdatedAt)
	return q, err
}

func collectQuotes(rows pgx.Rows) ([]Quote, error) {
	defer rows.Close()
	items := make([]Quote, 0)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	return items, rows.Err()
}

func collectRequests(rows pgx.Rows) ([]ServiceRequest, error) {
	defer rows.Close()
	items := make([]ServiceRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, rows.Err()
}

// lockRequest loads the request row FOR UPDATE inside tx.
func lockRequest(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) (ServiceRequest, error) {
	req, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1 FOR UPDATE`, requestID))
	if err != nil {
		if db.IsNoRows(err) {
			return ServiceRequest{}, domain.ErrRequestNotFound
		}
		return ServiceRequest{}, db.Unavailable("lock service request", err)
	}
	return req, nil
}

func listInvitees(ctx context.Context, q interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
}, requestID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `SELECT provider_id FROM request_invitations WHERE request_id = $1 ORDER BY invited_at, provider_id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateRequest inserts a new pending request.
func (r *Repo) CreateRequest(ctx context.Context, req ServiceRequest) (ServiceRequest, error) {
	query := `
		INSERT INTO service_requests (id, client_id, service_id, description, photo_refs, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + requestColumns

	photoRefs := req.PhotoRefs
	if photoRefs == nil {
		photoRefs = []string{}
	}

	created, err := scanRequest(r.pool.QueryRow(ctx, query, req.ID, req.ClientID, req.ServiceID, req.Description, photoRefs, domain.RequestPending))
	if err != nil {
		return ServiceRequest{}, db.Unavailable("create service request", err)
	}
	return created, nil
}

// GetRequest retrieves a request by ID.
func (r *Repo) GetRequest(ctx context.Context, id uuid.UUID) (ServiceRequest, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return ServiceRequest{}, domain.ErrRequestNotFound
		}
		return ServiceRequest{}, db.Unavailable("get service request", err)
	}
	return req, nil
}

// ListRequestsByClient lists a client's requests, newest first.
func (r *Repo) ListRequestsByClient(ctx context.Context, clientID uuid.UUID) ([]ServiceRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, db.Unavailable("list client requests", err)
	}
	items, err := collectRequests(rows)
	if err != nil {
		return nil, db.Unavailable("scan client requests", err)
	}
	return items, nil
}

// ListRequestsForProvider lists requests a provider was invited to or bid on.
func (r *Repo) ListRequestsForProvider(ctx context.Context, providerID uuid.UUID) ([]ServiceRequest, error) {
	query := `
		SELECT sr.id, sr.client_id, sr.service_id, sr.description, sr.photo_refs, sr.status, sr.created_at, sr.updated_at
		FROM service_requests sr
		JOIN request_invitations ri ON ri.request_id = sr.id
		WHERE ri.provider_id = $1
		ORDER BY sr.created_at DESC`

	rows, err := r.pool.Query(ctx, query, providerID)
	if err != nil {
		return nil, db.Unavailable("list provider requests", err)
	}
	items, err := collectRequests(rows)
	if err != nil {
		return nil, db.Unavailable("scan provider requests", err)
	}
	return items, nil
}

// AddInvitations records invitations for an open request.
func (r *Repo) AddInvitations(ctx context.Context, requestID uuid.UUID, providerIDs []uuid.UUID) ([]uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, db.Unavailable("begin add invitations", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	req, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.AcceptsQuotes() {
		return nil, domain.ErrRequestNotOpen
	}

	rows, err := tx.Query(ctx, `
		INSERT INTO request_invitations (request_id, provider_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING
		RETURNING provider_id`, requestID, providerIDs)
	if err != nil {
		return nil, db.Unavailable("insert invitations", err)
	}

	added := make([]uuid.UUID, 0, len(providerIDs))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, db.Unavailable("scan invitation", err)
		}
		added = append(added, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, db.Unavailable("insert invitations", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, db.Unavailable("commit add invitations", err)
	}
	return added, nil
}

// ListInvitees lists every provider invited to the request.
func (r *Repo) ListInvitees(ctx context.Context, requestID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := listInvitees(ctx, r.pool, requestID)
	if err != nil {
		return nil, db.Unavailable("list invitees", err)
	}
	return ids, nil
}

// InsertQuote stores an open quote against an open request.
func (r *Repo) InsertQuote(ctx context.Context, quote Quote) (Quote, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Quote{}, db.Unavailable("begin insert quote", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	req, err := lockRequest(ctx, tx, quote.RequestID)
	if err != nil {
		return Quote{}, err
	}
	if !req.Status.AcceptsQuotes() {
		return Quote{}, domain.ErrRequestNotOpen
	}

	created, err := scanQuote(tx.QueryRow(ctx, `
		INSERT INTO quotes (id, request_id, provider_id, price_cents, estimated_minutes, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+quoteColumns,
		quote.ID, quote.RequestID, quote.ProviderID, quote.PriceCents, quote.EstimatedMinutes, quote.Notes, domain.QuoteOpen,
	))
	if err != nil {
		if db.IsUniqueViolation(err, uqOpenQuotePerProvider) {
			return Quote{}, domain.ErrDuplicateQuote
		}
		return Quote{}, db.Unavailable("insert quote", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO request_invitations (request_id, provider_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, quote.RequestID, quote.ProviderID); err != nil {
		return Quote{}, db.Unavailable("record bidder invitation", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE service_requests SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`, quote.RequestID, domain.RequestQuoting, domain.RequestPending); err != nil {
		return Quote{}, db.Unavailable("mark request quoting", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Quote{}, db.Unavailable("commit insert quote", err)
	}
	return created, nil
}

// GetQuote retrieves a quote by ID.
func (r *Repo) GetQuote(ctx context.Context, id uuid.UUID) (Quote, error) {
	q, err := scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Quote{}, domain.ErrQuoteNotFound
		}
		return Quote{}, db.Unavailable("get quote", err)
	}
	return q, nil
}

// ListQuotes lists a request's quotes in submission order.
func (r *Repo) ListQuotes(ctx context.Context, requestID uuid.UUID) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE request_id = $1 ORDER BY created_at, id`, requestID)
	if err != nil {
		return nil, db.Unavailable("list quotes", err)
	}
	items, err := collectQuotes(rows)
	if err != nil {
		return nil, db.Unavailable("scan quotes", err)
	}
	return items, nil
}

// AcceptQuote accepts one open quote, rejects its open siblings and closes
// the request in a single transaction.
func (r *Repo) AcceptQuote(ctx context.Context, requestID, quoteID uuid.UUID) (AcceptResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return AcceptResult{}, db.Unavailable("begin accept quote", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := lockRequest(ctx, tx, requestID); err != nil {
		return AcceptResult{}, err
	}

	accepted, err := scanQuote(tx.QueryRow(ctx, `
		UPDATE quotes SET status = $3, updated_at = now()
		WHERE id = $1 AND request_id = $2 AND status = $4
		RETURNING `+quoteColumns, quoteID, requestID, domain.QuoteAccepted, domain.QuoteOpen))
	if err != nil {
		if db.IsNoRows(err) {
			return AcceptResult{}, r.quoteMissOrClosed(ctx, tx, requestID, quoteID)
		}
		if db.IsUniqueViolation(err, uqAcceptedPerRequest) {
			return AcceptResult{}, domain.ErrQuoteNotOpen
		}
		return AcceptResult{}, db.Unavailable("accept quote", err)
	}

	rows, err := tx.Query(ctx, `
		UPDATE quotes SET status = $3, updated_at = now()
		WHERE request_id = $1 AND id <> $2 AND status = $4
		RETURNING `+quoteColumns, requestID, quoteID, domain.QuoteRejected, domain.QuoteOpen)
	if err != nil {
		return AcceptResult{}, db.Unavailable("reject sibling quotes", err)
	}
	rejected, err := collectQuotes(rows)
	if err != nil {
		return AcceptResult{}, db.Unavailable("scan rejected quotes", err)
	}

	req, err := scanRequest(tx.QueryRow(ctx, `
		UPDATE service_requests SET status = $2, updated_at = now()
		WHERE id = $1 AND status IN ($3, $4)
		RETURNING `+requestColumns, requestID, domain.RequestAccepted, domain.RequestPending, domain.RequestQuoting))
	if err != nil {
		if db.IsNoRows(err) {
			return AcceptResult{}, domain.ErrRequestNotOpen
		}
		return AcceptResult{}, db.Unavailable("close request", err)
	}

	invitees, err := listInvitees(ctx, tx, requestID)
	if err != nil {
		return AcceptResult{}, db.Unavailable("list invitees", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return AcceptResult{}, db.Unavailable("commit accept quote", err)
	}

	return AcceptResult{Request: req, Accepted: accepted, Rejected: rejected, Invitees: invitees}, nil
}

// RejectQuote declines a single open quote.
func (r *Repo) RejectQuote(ctx context.Context, quoteID uuid.UUID) (Quote, error) {
	q, err := scanQuote(r.pool.QueryRow(ctx, `
		UPDATE quotes SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+quoteColumns, quoteID, domain.QuoteRejected, domain.QuoteOpen))
	if err == nil {
		return q, nil
	}
	if !db.IsNoRows(err) {
		return Quote{}, db.Unavailable("reject quote", err)
	}

	if _, err := r.GetQuote(ctx, quoteID); err != nil {
		return Quote{}, err
	}
	return Quote{}, domain.ErrQuoteNotOpen
}

// CancelRequest withdraws an open request and rejects its open quotes.
func (r *Repo) CancelRequest(ctx context.Context, requestID uuid.UUID) (CancelResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return CancelResult{}, db.Unavailable("begin cancel request", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return CancelResult{}, err
	}
	if !current.Status.AcceptsQuotes() {
		return CancelResult{}, domain.ErrRequestNotOpen
	}

	rows, err := tx.Query(ctx, `
		UPDATE quotes SET status = $2, updated_at = now()
		WHERE request_id = $1 AND status = $3
		RETURNING `+quoteColumns, requestID, domain.QuoteRejected, domain.QuoteOpen)
	if err != nil {
		return CancelResult{}, db.Unavailable("reject open quotes", err)
	}
	rejected, err := collectQuotes(rows)
	if err != nil {
		return CancelResult{}, db.Unavailable("scan rejected quotes", err)
	}

	req, err := scanRequest(tx.QueryRow(ctx, `
		UPDATE service_requests SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+requestColumns, requestID, domain.RequestCancelled))
	if err != nil {
		return CancelResult{}, db.Unavailable("cancel request", err)
	}

	invitees, err := listInvitees(ctx, tx, requestID)
	if err != nil {
		return CancelResult{}, db.Unavailable("list invitees", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return CancelResult{}, db.Unavailable("commit cancel request", err)
	}
	return CancelResult{Request: req, Rejected: rejected, Invitees: invitees}, nil
}

func (r *Repo) quoteMissOrClosed(ctx context.Context, tx pgx.Tx, requestID, quoteID uuid.UUID) error {
	var status domain.QuoteStatus
	err := tx.QueryRow(ctx, `SELECT status FROM quotes WHERE id = $1 AND request_id = $2`, quoteID, requestID).Scan(&status)
	if err != nil {
		if db.IsNoRows(err) {
			return domain.ErrQuoteNotFound
		}
		return db.Unavailable(fmt.Sprintf("load quote %s", quoteID), err)
	}
	return domain.ErrQuoteNotOpen
}
