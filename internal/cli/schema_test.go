package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaCommandText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "people.cue", peopleCUE)

	stdout, _, err := execute(t, "schema", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "schema version 1\n\nclass Person (primary key: name)\n")
	assert.Contains(t, stdout, "dogs  array<Dog>")
	assert.Contains(t, stdout, "class Dog\n")
}

func TestSchemaCommandJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "people.cue", peopleCUE)

	stdout, _, err := execute(t, "--format", "json", "schema", path)
	require.NoError(t, err)

	var resp struct {
		Status string
		Data   struct {
			Version int64
			Classes []struct {
				ClassName   string `json:"class_name"`
				Fingerprint string
				Properties  []map[string]any
			}
		}
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(1), resp.Data.Version)
	require.Len(t, resp.Data.Classes, 2)

	person := resp.Data.Classes[0]
	assert.Equal(t, "Person", person.ClassName)
	assert.Len(t, person.Properties, 3)
	assert.NotEmpty(t, person.Fingerprint)
	assert.NotEqual(t, person.Fingerprint, resp.Data.Classes[1].Fingerprint)
}

func TestSchemaCommandInvalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", `package schema

class: A: { b: {type: "object", class: "B"} }
`)

	stdout, _, err := execute(t, "schema", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E105]")
}

func TestSchemaCommandCompileError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", `package schema

class: A: { b: {type: "int", default: "x"} }
`)

	stdout, _, err := execute(t, "schema", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E011]")
}
