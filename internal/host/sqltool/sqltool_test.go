package sqltool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iris/internal/host"
	"iris/internal/object"
)

func TestParseDSN(t *testing.T) {
	type testCase struct {
		dsn    string
		driver string
		source string
	}

	testCases := []testCase{
		{dsn: "sqlite::memory:", driver: "sqlite3", source: ":memory:"},
		{dsn: "sqlite:/tmp/tools.db", driver: "sqlite3", source: "/tmp/tools.db"},
		{dsn: "tools.db", driver: "sqlite3", source: "tools.db"},
		{dsn: "mysql://app:pw@tcp(db:3306)/tools", driver: "mysql", source: "app:pw@tcp(db:3306)/tools"},
		{dsn: "postgres://app@db/tools?sslmode=disable", driver: "postgres", source: "postgres://app@db/tools?sslmode=disable"},
	}

	for _, tc := range testCases {
		t.Run(tc.dsn, func(t *testing.T) {
			driver, source := parseDSN(tc.dsn)
			assert.Equal(t, tc.driver, driver)
			assert.Equal(t, tc.source, source)
		})
	}
}

func TestQueryAndExec(t *testing.T) {
	ctx := context.Background()
	h, err := Open(ctx, "sqlite::memory:", nil)
	require.NoError(t, err)
	defer h.Close()

	str := object.NewString
	call := func(name string, args ...object.Object) string {
		t.Helper()
		out, err := h.CallTool(ctx, name, args)
		require.NoError(t, err)
		return out.Inspect()
	}

	assert.Equal(t, "0", call(ExecTool, str("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")))
	assert.Equal(t, "1", call(ExecTool, str("INSERT INTO users (name) VALUES (?)"), str("ada")))
	assert.Equal(t, "1", call(ExecTool, str("INSERT INTO users (name) VALUES (?)"), str("grace")))

	assert.Equal(t,
		`(list (record (id 1) (name "ada")) (record (id 2) (name "grace")))`,
		call(QueryTool, str("SELECT id, name FROM users ORDER BY id")))
	assert.Equal(t,
		`(list (record (name "grace")))`,
		call(QueryTool, str("SELECT name FROM users WHERE id = ?"), object.NewI64(2)))
	assert.Equal(t, "(list)", call(QueryTool, str("SELECT name FROM users WHERE id = 99")))
	assert.Equal(t, "2", call(ExecTool, str("DELETE FROM users WHERE id > 0")))
}

func TestCallToolErrors(t *testing.T) {
	ctx := context.Background()
	h, err := Open(ctx, "sqlite::memory:", nil)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.CallTool(ctx, "sql_drop", nil)
	assert.True(t, errors.Is(err, host.ErrToolNotFound))

	_, err = h.CallTool(ctx, QueryTool, nil)
	assert.EqualError(t, err, "sql_query needs a statement")

	_, err = h.CallTool(ctx, ExecTool, []object.Object{object.NewI64(1)})
	assert.EqualError(t, err, "sql_exec expects Str statement, got I64")

	_, err = h.CallTool(ctx, QueryTool, []object.Object{object.NewString("SELECT * FROM missing")})
	assert.Error(t, err)
}

func TestChainedWithRegistry(t *testing.T) {
	ctx := context.Background()
	h, err := Open(ctx, "sqlite::memory:", nil)
	require.NoError(t, err)
	defer h.Close()

	registry := host.NewToolRegistry()
	registry.RegisterFunc("greet", func(args ...interface{}) (interface{}, error) { return "hi", nil })
	tools := host.Tools{registry, h}

	out, err := tools.CallTool(ctx, QueryTool, []object.Object{object.NewString("SELECT 1 AS one")})
	require.NoError(t, err)
	assert.Equal(t, "(list (record (one 1)))", out.Inspect())

	out, err = tools.CallTool(ctx, "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, `"hi"`, out.Inspect())
}
