package cli

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/fern-energy/gridbase/internal/store"
)

// assertGolden compares rendered command output against a fixture in
// testdata/golden. To regenerate fixtures, run:
//
//	go test ./internal/cli -update
func assertGolden(t *testing.T, name, output string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(output))
}

func TestObjectsTableGolden(t *testing.T) {
	db := initDB(t)
	withStore(t, db, func(ctx context.Context, s *store.Store) {
		_, err := s.CreateObject(ctx, "Generator", "Alpha",
			store.WithCategory("Thermal"), store.WithDescription("coal unit"))
		require.NoError(t, err)
		_, err = s.CreateObject(ctx, "Generator", "Beta",
			store.WithCategory("Hydro"), store.WithDescription("run of river"))
		require.NoError(t, err)
	})

	out, err := runCommand(t, "objects", "--db", db, "--class", "Generator")
	require.NoError(t, err)
	assertGolden(t, "objects_table", out)
}

func TestPropertiesTableGolden(t *testing.T) {
	db := initDB(t)
	withStore(t, db, func(ctx context.Context, s *store.Store) {
		_, err := s.CreateObject(ctx, "Generator", "gen-01")
		require.NoError(t, err)
		mid, err := s.SystemMembership(ctx, "Generator", "gen-01")
		require.NoError(t, err)
		_, err = s.SetValue(ctx, mid, "Max Capacity", 400)
		require.NoError(t, err)
		_, err = s.SetValue(ctx, mid, "Max Capacity", 500, store.WithScenario("High Demand"))
		require.NoError(t, err)
		_, err = s.SetValue(ctx, mid, "Heat Rate Incr", 9)
		require.NoError(t, err)
		_, err = s.SetValue(ctx, mid, "Heat Rate Incr", 9.5, store.WithBand(2))
		require.NoError(t, err)
	})

	out, err := runCommand(t, "properties", "--db", db,
		"--class", "Generator", "--object", "gen-01",
		"--scenario", "High Demand")
	require.NoError(t, err)
	assertGolden(t, "properties_table", out)
}

func TestQueryTableGolden(t *testing.T) {
	db := initDB(t)

	out, err := runCommand(t, "query", "--db", db,
		"SELECT class_id, name FROM t_class ORDER BY class_id LIMIT 4")
	require.NoError(t, err)
	assertGolden(t, "query_table", out)
}
