package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rowbind/internal/store"
)

func TestMigrateNewDatabase(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "people.cue", peopleCUE)
	dbPath := filepath.Join(dir, "people.db")

	stdout, _, err := execute(t, "migrate", schemaPath, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Migrated "+dbPath+" from an empty database to version 1")
	assert.Contains(t, stdout, "[primary, indexed, column=")

	stdout, _, err = execute(t, "migrate", schemaPath, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "is at schema version 1")
}

func TestMigrateJSON(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "people.cue", peopleCUE)
	dbPath := filepath.Join(dir, "people.db")

	stdout, _, err := execute(t, "--format", "json", "migrate", schemaPath, "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string
		Data   MigrateResult
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, store.NotVersioned, resp.Data.FromVersion)
	assert.Equal(t, int64(1), resp.Data.Version)
	assert.Len(t, resp.Data.Classes, 2)
}

func TestMigrateVersionBump(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "people.cue", peopleCUE)
	dbPath := filepath.Join(dir, "people.db")

	_, _, err := execute(t, "migrate", schemaPath, "--db", dbPath)
	require.NoError(t, err)

	withEmail := strings.Replace(peopleCUE, `age:  "int"`, "age:  \"int\"\n\t\temail: \"string?\"", 1)

	// Changing a table needs a new version.
	writeFile(t, dir, "people.cue", withEmail)
	stdout, _, err := execute(t, "migrate", schemaPath, "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E007]")

	writeFile(t, dir, "people.cue", strings.Replace(withEmail, "version: 1", "version: 2", 1))
	stdout, _, err = execute(t, "migrate", schemaPath, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "from version 1 to version 2")
	assert.Contains(t, stdout, "email")

	// Going back is rejected.
	writeFile(t, dir, "people.cue", withEmail)
	_, _, err = execute(t, "migrate", schemaPath, "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestMigrateVerboseLogs(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "people.cue", peopleCUE)

	_, stderr, err := execute(t, "-v", "migrate", schemaPath, "--db", filepath.Join(dir, "people.db"))
	require.NoError(t, err)
	assert.Contains(t, stderr, "Migrating")
	assert.Contains(t, stderr, "realm opened")
}

func TestMigrateNeedsDB(t *testing.T) {
	schemaPath := writeFile(t, t.TempDir(), "people.cue", peopleCUE)

	stdout, _, err := execute(t, "migrate", schemaPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "--db")
}

func TestMigrateInvalidSchema(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "bad.cue", `package schema

class: A: {}
`)

	_, _, err := execute(t, "migrate", schemaPath, "--db", filepath.Join(dir, "a.db"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "E101")
}
