package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fern-energy/gridbase/internal/schema"
	"github.com/fern-energy/gridbase/internal/store"
)

// loadCatalog compiles the catalog named by --catalog, or returns the
// embedded one.
func loadCatalog(opts *RootOptions) (*schema.Catalog, error) {
	if opts.Catalog != "" {
		return schema.Load(opts.Catalog)
	}
	return schema.Default()
}

// setupLogging routes slog to stderr at a level matching --verbose.
func setupLogging(opts *RootOptions) {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// openStore opens an existing, initialized database and checks that its
// recorded schema version matches the catalog in use. The caller closes
// the returned store.
func openStore(ctx context.Context, opts *RootOptions) (*store.Store, error) {
	if _, err := os.Stat(opts.DB); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.DB))
	}

	cat, err := loadCatalog(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	st, err := store.Open(opts.DB, cat)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	dbVersion, err := st.Version(ctx)
	if err != nil {
		st.Close()
		if store.IsNotFound(err) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not initialized: %s (run gridbase init)", opts.DB))
		}
		return nil, WrapExitError(ExitCommandError, "failed to read database version", err)
	}
	if dbVersion != cat.Version {
		st.Close()
		return nil, NewExitError(ExitCommandError, fmt.Sprintf(
			"catalog version mismatch: database has %s, catalog has %s (pass the matching --catalog)",
			dbVersion, cat.Version))
	}

	return st, nil
}
