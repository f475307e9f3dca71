package realm

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rowbind/internal/schema"
)

// testSchema declares Person (string primary key, spouse, dogs) and Dog.
func testSchema() *schema.Schema {
	name := schema.NewProperty("name", schema.TypeString)
	name.PrimaryKey = true
	person := schema.MustObjectSchema("Person",
		name,
		schema.NewProperty("age", schema.TypeInt),
		schema.Link("spouse", schema.TypeObject, "Person"),
		schema.Link("dogs", schema.TypeArray, "Dog"),
	)

	age := schema.NewProperty("age", schema.TypeInt)
	age.Default = 1
	dog := schema.MustObjectSchema("Dog",
		schema.NewProperty("name", schema.TypeString),
		age,
	)

	note := schema.NewProperty("text", schema.TypeString)
	note.Optional = true
	return schema.MustNew(person, dog, schema.MustObjectSchema("Note", note))
}

func testPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// openTestRealm opens a realm with cfg, filling in the path and schema when
// unset, and closes it when the test ends.
func openTestRealm(t *testing.T, cfg Config) *Realm {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = testPath(t)
	}
	if cfg.Schema == nil {
		cfg.Schema = testSchema()
	}
	r, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// captureLogs returns a debug logger writing text records to the buffer.
func captureLogs() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// inWrite runs fn in a committed write transaction.
func inWrite(t *testing.T, r *Realm, fn func(ctx context.Context)) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.BeginWrite(ctx))
	fn(ctx)
	require.NoError(t, r.CommitWrite())
}

func createPerson(t *testing.T, ctx context.Context, r *Realm, name string, age int) *Object {
	t.Helper()
	o, err := r.Create(ctx, "Person", map[string]any{"name": name, "age": age})
	require.NoError(t, err)
	return o
}

func newPerson(t *testing.T, r *Realm, name string, age int) *Object {
	t.Helper()
	o, err := NewObjectWithValues(r.Schema().ObjectSchema("Person"), map[string]any{"name": name, "age": age})
	require.NoError(t, err)
	return o
}

func newDog(t *testing.T, r *Realm, name string) *Object {
	t.Helper()
	o := NewObject(r.Schema().ObjectSchema("Dog"))
	require.NoError(t, o.Set("name", name))
	return o
}

func count(t *testing.T, r *Realm, class string) int {
	t.Helper()
	res, err := r.Objects(class)
	require.NoError(t, err)
	n, err := res.Count()
	require.NoError(t, err)
	return n
}

func get(t *testing.T, o *Object, name string) any {
	t.Helper()
	v, err := o.Get(name)
	require.NoError(t, err)
	return v
}
