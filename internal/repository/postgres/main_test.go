package postgres

import (
	"testing"

	"github.com/nkiryanov/vendorpos/internal/testutil"
)

func startPostgres(t *testing.T) testutil.PostgresContainer {
	t.Helper()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)
	return pg
}
