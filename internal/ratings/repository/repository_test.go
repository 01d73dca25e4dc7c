package repository

import (
	"errors"
	"fmt"
	"regexp"
	"testing"

	"marketplace_backend/internal/domain"
	"marketplace_backend/platform/apperr"

	"github.com/jackc/pgx/v5/pgconn"
)

var placeholder = regexp.MustCompile(`\$[0-9]+`)

func placeholderUses(query string) map[string]int {
	uses := make(map[string]int)
	for _, p := range placeholder.FindAllString(query, -1) {
		uses[p]++
	}
	return uses
}

func TestRatingQueriesBindEachPlaceholderOnce(t *testing.T) {
	cases := []struct {
		name  string
		query string
		args  int
	}{
		{"insert rating", insertRatingQuery, 7},
		{"upsert stats", upsertStatsQuery, 3},
	}
	for _, tc := range cases {
		uses := placeholderUses(tc.query)
		if len(uses) != tc.args {
			t.Errorf("%s: expected %d placeholders, got %v", tc.name, tc.args, uses)
		}
		for i := 1; i <= tc.args; i++ {
			if n := uses[fmt.Sprintf("$%d", i)]; n != 1 {
				t.Errorf("%s: $%d used %d times", tc.name, i, n)
			}
		}
	}
}

func TestInsertRatingErrorMapping(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: uqRatingJobDirection})
	if err := insertRatingError(dup); !errors.Is(err, domain.ErrAlreadyRated) {
		t.Fatalf("expected ErrAlreadyRated, got %v", err)
	}

	missingJob := &pgconn.PgError{Code: "23503", ConstraintName: "ratings_job_id_fkey"}
	if err := insertRatingError(missingJob); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	if err := insertRatingError(errors.New("connection reset")); !apperr.IsRetriable(err) {
		t.Fatalf("expected driver failure to be retriable, got %v", err)
	}
}
