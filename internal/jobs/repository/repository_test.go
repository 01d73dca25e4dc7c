package repository

import (
	"errors"
	"testing"

	"marketplace_backend/internal/domain"
	"marketplace_backend/platform/apperr"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestCreateJobErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"second job for a quote", &pgconn.PgError{Code: "23505", ConstraintName: uqJobQuote}, domain.ErrJobAlreadyExists},
		{"unknown quote", &pgconn.PgError{Code: "23503", ConstraintName: "jobs_quote_id_fkey"}, domain.ErrQuoteNotFound},
	}
	for _, tc := range cases {
		if got := createJobError(tc.err); !errors.Is(got, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}

	other := &pgconn.PgError{Code: "23505", ConstraintName: "uq_other"}
	if got := createJobError(other); !apperr.IsRetriable(got) {
		t.Fatalf("expected unrelated violation to surface as unavailable, got %v", got)
	}
}
