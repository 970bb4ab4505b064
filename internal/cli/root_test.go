package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fulfillment", cmd.Use)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "json", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"serve"},
		{"migrate"},
		{"product", "add"},
		{"product", "stock"},
		{"product", "restock"},
		{"product", "adjust"},
		{"product", "reconcile"},
		{"product", "low-stock"},
		{"order", "fulfill"},
		{"order", "get"},
		{"order", "ship"},
	}

	for _, path := range commands {
		t.Run(fmt.Sprint(path), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestParseLine(t *testing.T) {
	line, err := parseLine("P-100:5:2000:0.1")
	require.NoError(t, err)
	assert.Equal(t, "P-100", line.ProductID)
	assert.Equal(t, int64(5), line.Quantity)
	assert.Equal(t, int64(2000), line.UnitPriceCents)
	assert.True(t, decimal.RequireFromString("0.1").Equal(line.Discount))

	line, err = parseLine("P:1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), line.UnitPriceCents)
	assert.True(t, line.Discount.IsZero())

	for _, bad := range []string{"P", "P:x", "P:1:y", "P:1:2:z", "P:1:2:3:4"} {
		_, err := parseLine(bad)
		assert.Error(t, err, bad)
	}
}

// cliEnv runs commands against a throwaway SQLite store.
type cliEnv struct {
	config string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`log:
  level: error
storage:
  driver: sqlite
  migrate: true
  sqlite:
    path: %s
fulfillment:
  max_attempts: 3
`, filepath.Join(dir, "fulfillment.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return cliEnv{config: path}
}

func (e cliEnv) run(args ...string) (string, error) {
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", e.config}, args...))

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestProductAndOrderCommands(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("product", "add", "P", "--name", "Widget", "--price", "200", "--stock", "10", "--reorder-threshold", "5")
	require.NoError(t, err)
	var p product.Product
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, int64(10), p.InitialStock)

	out, err = env.run("order", "fulfill", "--customer", "cust1", "--line", "P:5:200")
	require.NoError(t, err)
	var view order.View
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, order.StatusFulfilled, view.Status)
	assert.Equal(t, int64(1000), view.TotalCents)

	_, err = env.run("order", "fulfill", "--customer", "cust2", "--line", "P:8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient stock")

	out, err = env.run("--format", "text", "product", "stock", "P")
	require.NoError(t, err)
	assert.Equal(t, "P\t5\n", out)

	out, err = env.run("--format", "text", "product", "low-stock")
	require.NoError(t, err)
	assert.Contains(t, out, "P\tstock=5\tthreshold=5")

	out, err = env.run("product", "restock", "P", "-q", "3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"productId":"P","stock":8}`, out)

	out, err = env.run("product", "reconcile", "P")
	require.NoError(t, err)
	var recs []product.Reconciliation
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Balanced)

	out, err = env.run("order", "ship", view.ID)
	require.NoError(t, err)
	var shipped order.View
	require.NoError(t, json.Unmarshal([]byte(out), &shipped))
	assert.Equal(t, order.StatusShipped, shipped.Status)

	_, err = env.run("order", "get", "missing")
	assert.Error(t, err)
}

func TestInvalidFormat(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run("--format", "yaml", "product", "low-stock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestMigrate(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("migrate")
	require.NoError(t, err)
	assert.Equal(t, "migrations applied (sqlite)\n", out)
}
