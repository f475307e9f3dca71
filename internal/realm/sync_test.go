package realm

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rowbind/internal/schema"
	"github.com/roach88/rowbind/internal/store"
)

func columns(s *schema.Schema) map[string]int {
	out := map[string]int{}
	for _, obj := range s.ObjectSchemas() {
		for _, p := range obj.Properties {
			out[obj.ClassName+"."+p.Name] = p.Column
		}
	}
	return out
}

// personV2 changes Person.age from int to string and adds an email.
func personV2() *schema.Schema {
	name := schema.NewProperty("name", schema.TypeString)
	name.PrimaryKey = true
	email := schema.NewProperty("email", schema.TypeString)
	email.Optional = true
	person := schema.MustObjectSchema("Person",
		name,
		schema.NewProperty("age", schema.TypeString),
		schema.Link("spouse", schema.TypeObject, "Person"),
		schema.Link("dogs", schema.TypeArray, "Dog"),
		email,
	)
	s := testSchema()
	return schema.MustNew(person, s.ObjectSchema("Dog"), s.ObjectSchema("Note"))
}

func TestOpen_BindsEveryProperty(t *testing.T) {
	r := openTestRealm(t, Config{})

	for _, obj := range r.Schema().ObjectSchemas() {
		assert.True(t, obj.IsBound(), "class %s is not bound", obj.ClassName)
	}
	assert.Equal(t, 0, r.Schema().ObjectSchema("Person").Property("name").Column)
	assert.False(t, r.InWriteTransaction())

	v, err := r.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestUpdateSchema_FastPathIsIdempotent(t *testing.T) {
	log, buf := captureLogs()
	r := openTestRealm(t, Config{SchemaVersion: 3, Logger: log})
	before := columns(r.Schema())
	assert.Contains(t, buf.String(), "schema updated")

	for range 2 {
		buf.Reset()
		err := r.UpdateSchema(context.Background(), testSchema(), 3, func(m *Migration) error {
			t.Fatal("migration must not run on the fast path")
			return nil
		})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "schema current")
		assert.NotContains(t, buf.String(), "schema updated")
		assert.NotContains(t, buf.String(), "write transaction started")
		assert.Equal(t, before, columns(r.Schema()))
		assert.False(t, r.InWriteTransaction())
	}
}

func TestUpdateSchema_InsideWriteTransaction(t *testing.T) {
	r := openTestRealm(t, Config{})
	ctx := context.Background()
	require.NoError(t, r.BeginWrite(ctx))
	defer r.CancelWrite()

	err := r.UpdateSchema(ctx, testSchema(), 0, nil)
	require.Error(t, err)
	assert.True(t, Error.Has(err))
}

func TestUpdateSchema_LowerVersion(t *testing.T) {
	path := testPath(t)
	r := openTestRealm(t, Config{Path: path, SchemaVersion: 2})
	require.NoError(t, r.Close())

	_, err := Open(context.Background(), Config{Path: path, Schema: testSchema(), SchemaVersion: 1})
	require.Error(t, err)
	assert.True(t, ErrSchemaValidation.Has(err))
}

func TestUpdateSchema_ChangeNeedsVersionBump(t *testing.T) {
	path := testPath(t)
	r := openTestRealm(t, Config{Path: path, SchemaVersion: 1})
	require.NoError(t, r.Close())

	_, err := Open(context.Background(), Config{Path: path, Schema: personV2(), SchemaVersion: 1})
	require.Error(t, err)
	assert.True(t, ErrSchemaValidation.Has(err))
}

func TestUpdateSchema_NewClassWithoutBump(t *testing.T) {
	path := testPath(t)
	s := testSchema()
	small := schema.MustNew(s.ObjectSchema("Dog"))
	r := openTestRealm(t, Config{Path: path, Schema: small, SchemaVersion: 1})
	require.NoError(t, r.Close())

	r = openTestRealm(t, Config{Path: path, Schema: s, SchemaVersion: 1})
	assert.NotNil(t, r.Schema().ObjectSchema("Person"))
	assert.Equal(t, 0, count(t, r, "Person"))
}

func TestUpdateSchema_MigrationConvertsValues(t *testing.T) {
	ctx := context.Background()
	path := testPath(t)
	r := openTestRealm(t, Config{Path: path, SchemaVersion: 1})
	inWrite(t, r, func(ctx context.Context) {
		createPerson(t, ctx, r, "Alice", 30)
		createPerson(t, ctx, r, "Bob", 41)
	})
	require.NoError(t, r.Close())

	var sawVersion int64
	r, err := Open(ctx, Config{
		Path:          path,
		Schema:        personV2(),
		SchemaVersion: 2,
		Migration: func(m *Migration) error {
			sawVersion = m.OldVersion()
			assert.Equal(t, store.KindInt, m.OldSchema().Table("Person").Column("age").Kind)
			assert.Equal(t, schema.TypeString, m.NewSchema().ObjectSchema("Person").Property("age").Type)
			return m.Enumerate("Person", func(old map[string]any, obj *Object) error {
				age := old["age"].(int64)
				if err := obj.Set("email", old["name"].(string)+"@example.com"); err != nil {
					return err
				}
				return obj.Set("age", strconv.FormatInt(age, 10))
			})
		},
	})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(1), sawVersion)
	alice, err := r.Find(ctx, "Person", "Alice")
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.Equal(t, "30", get(t, alice, "age"))
	assert.Equal(t, "Alice@example.com", get(t, alice, "email"))

	table, err := r.Store().DescribeTable(ctx, "Person")
	require.NoError(t, err)
	for _, c := range table.Columns {
		assert.NotContains(t, c.Name, "_old_", "moved-aside columns are dropped")
	}
}

func TestUpdateSchema_MigrationAtomicity(t *testing.T) {
	ctx := context.Background()
	path := testPath(t)
	r := openTestRealm(t, Config{Path: path, SchemaVersion: 1})
	inWrite(t, r, func(ctx context.Context) {
		createPerson(t, ctx, r, "Alice", 30)
	})
	require.NoError(t, r.Close())

	cat := schema.MustObjectSchema("Cat", schema.NewProperty("name", schema.TypeString))
	v2 := personV2()
	target := schema.MustNew(append(v2.ObjectSchemas(), cat)...)
	boom := errors.New("boom")

	_, err := Open(ctx, Config{
		Path:          path,
		Schema:        target,
		SchemaVersion: 2,
		Migration: func(m *Migration) error {
			if _, err := m.Create("Cat", map[string]any{"name": "Tom"}); err != nil {
				return err
			}
			return m.Enumerate("Person", func(old map[string]any, obj *Object) error {
				if err := obj.Set("age", "thirty"); err != nil {
					return err
				}
				return boom
			})
		},
	})
	require.Error(t, err)
	assert.True(t, ErrMigrationCallback.Has(err))
	assert.ErrorIs(t, err, boom)

	s, err := store.Open(path)
	require.NoError(t, err)
	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	ok, err := s.HasTable(ctx, "Cat")
	require.NoError(t, err)
	assert.False(t, ok, "table created by the failed migration remains")
	table, err := s.DescribeTable(ctx, "Person")
	require.NoError(t, err)
	assert.Nil(t, table.Column("email"))
	assert.Nil(t, table.Column("_old_age"))
	assert.Equal(t, store.KindInt, table.Column("age").Kind)
	require.NoError(t, s.Close())

	r = openTestRealm(t, Config{Path: path, SchemaVersion: 1})
	alice, err := r.Find(ctx, "Person", "Alice")
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.Equal(t, int64(30), get(t, alice, "age"))
}

func TestMigration_CreateAndDelete(t *testing.T) {
	ctx := context.Background()
	path := testPath(t)
	r := openTestRealm(t, Config{Path: path, SchemaVersion: 1})
	inWrite(t, r, func(ctx context.Context) {
		createPerson(t, ctx, r, "Alice", 30)
		createPerson(t, ctx, r, "Bob", 12)
		_, err := r.Create(ctx, "Dog", map[string]any{"name": "Rex"})
		require.NoError(t, err)
	})
	require.NoError(t, r.Close())

	r = openTestRealm(t, Config{
		Path:          path,
		Schema:        personV2(),
		SchemaVersion: 2,
		Migration: func(m *Migration) error {
			err := m.Enumerate("Person", func(old map[string]any, obj *Object) error {
				if old["age"].(int64) < 18 {
					return m.Delete(obj)
				}
				return obj.Set("age", "adult")
			})
			if err != nil {
				return err
			}
			if err := m.DeleteAll("Dog"); err != nil {
				return err
			}
			_, err = m.Create("Person", map[string]any{"name": "Carol", "age": "new"})
			return err
		},
	})

	assert.Equal(t, 2, count(t, r, "Person"))
	assert.Equal(t, 0, count(t, r, "Dog"))
	bob, err := r.Find(ctx, "Person", "Bob")
	require.NoError(t, err)
	assert.Nil(t, bob)
	carol, err := r.Find(ctx, "Person", "Carol")
	require.NoError(t, err)
	require.NotNil(t, carol)
	assert.Equal(t, "new", get(t, carol, "age"))
}

func TestMigration_NotRunWithoutPriorVersion(t *testing.T) {
	called := false
	openTestRealm(t, Config{SchemaVersion: 5, Migration: func(m *Migration) error {
		called = true
		return nil
	}})
	assert.False(t, called)
}

func TestOpen_ReadOnly(t *testing.T) {
	ctx := context.Background()
	path := testPath(t)
	s := testSchema()
	small := schema.MustNew(s.ObjectSchema("Person"), s.ObjectSchema("Dog"))
	r := openTestRealm(t, Config{Path: path, Schema: small, SchemaVersion: 1})
	inWrite(t, r, func(ctx context.Context) {
		createPerson(t, ctx, r, "Alice", 30)
	})
	require.NoError(t, r.Close())

	t.Run("missing tables read as empty", func(t *testing.T) {
		ro := openTestRealm(t, Config{Path: path, Schema: s, SchemaVersion: 1, ReadOnly: true})
		assert.True(t, ro.IsReadOnly())
		assert.Equal(t, 1, count(t, ro, "Person"))
		assert.Equal(t, 0, count(t, ro, "Note"))
		assert.False(t, ro.Schema().ObjectSchema("Note").IsBound())

		err := ro.BeginWrite(ctx)
		require.Error(t, err)
	})

	t.Run("version mismatch fails", func(t *testing.T) {
		_, err := Open(ctx, Config{Path: path, Schema: s, SchemaVersion: 2, ReadOnly: true})
		require.Error(t, err)
		assert.True(t, ErrSchemaValidation.Has(err))
	})
}
