package database

import (
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

// NewMockPool returns a pgxmock pool whose expectations are verified when
// the test finishes. The returned pool satisfies DBTX.
func NewMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("create pgxmock pool: %v", err)
	}

	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet database expectations: %v", err)
		}
		mock.Close()
	})

	return mock
}
