// Package test holds integration tests that run the store against a real
// PostgreSQL server with the pgvector extension.
package test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/orioncx/internal/profile"
	"github.com/hrygo/orioncx/store"
	"github.com/hrygo/orioncx/store/db"
)

// PostgresDSNEnv names the variable holding the integration database DSN.
const PostgresDSNEnv = "ORIONCX_TEST_POSTGRES_DSN"

// GetPostgresDSN returns the integration DSN, skipping the test when unset.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv(PostgresDSNEnv); dsn != "" {
		return dsn
	}
	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		return dsn
	}
	t.Skipf("%s not set; skipping PostgreSQL integration test", PostgresDSNEnv)
	return ""
}

// NewTestingStore opens and migrates a store on the integration database.
// Every table is emptied first so tests start from a known state.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{Mode: "dev", Driver: "postgres", DSN: GetPostgresDSN(t)}

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)

	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))

	_, err = driver.GetDB().ExecContext(ctx, "TRUNCATE document, message, conversation, app_user CASCADE")
	require.NoError(t, err)
	return s
}
