package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fern-energy/gridbase/internal/schema"
	"github.com/fern-energy/gridbase/internal/store"
)

// runCommand executes the CLI with the given args, capturing output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// initDB initializes a fresh database in a temp dir and returns its path.
func initDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "model.db")
	_, err := runCommand(t, "init", "--db", db)
	require.NoError(t, err)
	return db
}

// withStore opens an initialized database, runs fn against it, and
// closes it again so CLI commands can reopen the file.
func withStore(t *testing.T, db string, fn func(ctx context.Context, s *store.Store)) {
	t.Helper()
	cat, err := schema.Default()
	require.NoError(t, err)
	s, err := store.Open(db, cat)
	require.NoError(t, err)
	defer s.Close()

	fn(context.Background(), s)
}
