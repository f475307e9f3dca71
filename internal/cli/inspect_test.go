package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rowbind/internal/realm"
	"github.com/roach88/rowbind/internal/store"
)

// seedPeople migrates a new database to peopleCUE and adds two people.
func seedPeople(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "people.cue", peopleCUE)
	dbPath := filepath.Join(dir, "people.db")

	s, version, err := loadSchema(schemaPath)
	require.NoError(t, err)

	ctx := context.Background()
	r, err := realm.Open(ctx, realm.Config{Path: dbPath, Schema: s, SchemaVersion: version})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Write(ctx, func() error {
		if _, err := r.Create(ctx, "Person", map[string]any{"name": "Ada", "age": 36}); err != nil {
			return err
		}
		_, err := r.Create(ctx, "Person", map[string]any{
			"name": "Alan",
			"age":  41,
			"dogs": []any{map[string]any{"name": "Rex"}},
		})
		return err
	}))
	return dbPath
}

func TestInspectText(t *testing.T) {
	dbPath := seedPeople(t)

	stdout, _, err := execute(t, "inspect", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, dbPath+": schema version 1\n")
	assert.Contains(t, stdout, "class Dog (1 row(s))")
	assert.Contains(t, stdout, "class Person (2 row(s))")
	assert.Contains(t, stdout, "  name  string  [indexed]")
	assert.Contains(t, stdout, "linklist<Dog>")
}

func TestInspectJSON(t *testing.T) {
	dbPath := seedPeople(t)

	stdout, _, err := execute(t, "--format", "json", "inspect", "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string
		Data   InspectResult
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, int64(1), resp.Data.Version)
	require.Len(t, resp.Data.Tables, 2)

	rows := map[string]int64{}
	for _, tbl := range resp.Data.Tables {
		rows[tbl.Name] = tbl.Rows
	}
	assert.Equal(t, map[string]int64{"Person": 2, "Dog": 1}, rows)
}

func TestInspectIsReadOnly(t *testing.T) {
	dbPath := seedPeople(t)

	_, _, err := execute(t, "inspect", "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath, store.ReadOnly())
	require.NoError(t, err)
	defer st.Close()
	v, err := st.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestInspectMissingDatabase(t *testing.T) {
	stdout, _, err := execute(t, "inspect", "--db", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E005]")
}

func TestInspectNeedsDB(t *testing.T) {
	_, _, err := execute(t, "inspect")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
