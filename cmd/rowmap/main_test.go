package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/koustreak/rowmap/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shop = `
models:
  - name: Timestamps
    fragment: true
    attributes:
      - {name: created_at, type: time, default_expr: now}
  - name: Product
    mixins: [Timestamps]
    attributes:
      - {name: id, type: int64, primary: true, auto: true}
      - {name: title, column: name, type: string}
      - {name: price, type: float64, converter: decimal, nullable: true}
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.yaml"), []byte(shop), 0o600))
	t.Setenv("ROWMAP_SCHEMA_DIR", dir)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDescribe_Models(t *testing.T) {
	out, err := run(t, "describe")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"MODEL", "TABLE", "COLUMNS", "STI", "PARENT"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"Product", "products", "4", "-", "-"}, strings.Fields(lines[1]))
}

func TestDescribe_ModelJSON(t *testing.T) {
	out, err := run(t, "describe", "Product", "-o", "json")
	require.NoError(t, err)

	var meta []schema.Metadata
	require.NoError(t, json.Unmarshal([]byte(out), &meta))
	require.Len(t, meta, 4)
	assert.Equal(t, "created_at", meta[0].Name)
	assert.Equal(t, "now()", meta[0].Default)
	assert.Equal(t, "title", meta[2].Name)
	assert.Equal(t, "name", meta[2].Column)
	assert.Equal(t, "decimal", meta[3].Converter)
}

func TestDescribe_ModelTable(t *testing.T) {
	out, err := run(t, "describe", "Product")
	require.NoError(t, err)
	assert.Contains(t, out, "primary,auto")
	assert.Contains(t, out, "converter=decimal")
}

func TestDescribe_YAMLRoundTrips(t *testing.T) {
	out, err := run(t, "describe", "-o", "yaml")
	require.NoError(t, err)

	cat, err := schema.LoadYAML(strings.NewReader(out))
	require.NoError(t, err)
	decls, err := cat.Definitions()
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, []string{"created_at", "id", "name", "price"}, decls[0].Definition.Columns())
}

func TestDescribe_Errors(t *testing.T) {
	_, err := run(t, "describe", "Order")
	assert.Error(t, err)

	_, err = run(t, "describe", "-o", "xml")
	assert.Error(t, err)

	_, err = run(t, "describe", "--from-store")
	assert.Error(t, err)
}

func TestIntrospect_NeedsDatabase(t *testing.T) {
	_, err := run(t, "introspect")
	assert.ErrorContains(t, err, "needs database")
}

func TestOnly(t *testing.T) {
	a := schema.MustDefine("User", schema.Attr(schema.Attribute{Name: "id", Type: schema.Int64()}))
	b := schema.MustDefine("Order", schema.Attr(schema.Attribute{Name: "id", Type: schema.Int64()}))

	got, err := only([]*schema.Definition{a, b}, []string{"orders"})
	require.NoError(t, err)
	assert.Equal(t, []*schema.Definition{b}, got)

	_, err = only([]*schema.Definition{a, b}, []string{"carts"})
	assert.Error(t, err)
}
