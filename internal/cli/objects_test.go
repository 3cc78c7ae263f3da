package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fern-energy/gridbase/internal/store"
)

func seedObjects(t *testing.T, db string) {
	t.Helper()
	withStore(t, db, func(ctx context.Context, s *store.Store) {
		_, err := s.CreateObject(ctx, "Generator", "Alpha", store.WithCategory("Thermal"))
		require.NoError(t, err)
		_, err = s.CreateObject(ctx, "Generator", "Beta", store.WithCategory("Hydro"))
		require.NoError(t, err)
	})
}

func TestObjectsCommand(t *testing.T) {
	db := initDB(t)
	seedObjects(t, db)

	out, err := runCommand(t, "objects", "--db", db, "--class", "Generator")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "Beta")
	assert.Less(t, strings.Index(out, "Alpha"), strings.Index(out, "Beta"))
}

func TestObjectsCommand_Category(t *testing.T) {
	db := initDB(t)
	seedObjects(t, db)

	out, err := runCommand(t, "objects", "--db", db, "--class", "Generator", "--category", "Hydro")
	require.NoError(t, err)
	assert.NotContains(t, out, "Alpha")
	assert.Contains(t, out, "Beta")
}

func TestObjectsCommand_JSON(t *testing.T) {
	db := initDB(t)
	seedObjects(t, db)

	out, err := runCommand(t, "objects", "--db", db, "--class", "Generator", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   []ObjectInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "Alpha", resp.Data[0].Name)
	assert.Equal(t, "Thermal", resp.Data[0].Category)
	assert.NotEmpty(t, resp.Data[0].GUID)
}

func TestObjectsCommand_Empty(t *testing.T) {
	db := initDB(t)

	out, err := runCommand(t, "objects", "--db", db, "--class", "Generator")
	require.NoError(t, err)
	assert.Contains(t, out, "No Generator objects")
}

func TestObjectsCommand_UnknownClass(t *testing.T) {
	db := initDB(t)

	out, err := runCommand(t, "objects", "--db", db, "--class", "Widget")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "SCHEMA_VIOLATION")
}

func TestObjectsCommand_MissingDB(t *testing.T) {
	_, err := runCommand(t, "objects", "--db", filepath.Join(t.TempDir(), "absent.db"), "--class", "Generator")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestObjectsCommand_VersionMismatch(t *testing.T) {
	db := initDB(t)
	withStore(t, db, func(ctx context.Context, s *store.Store) {
		require.NoError(t, s.SetConfig(ctx, "Version", "v999"))
	})

	_, err := runCommand(t, "objects", "--db", db, "--class", "Generator")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "catalog version mismatch")
}
