package ledger

import (
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

// The repository SQL must stay in step with the ledger_transactions table in
// the init migration. This catches column renames on either side.
func TestMigrationDefinesRepositoryColumns(t *testing.T) {
	schema, err := os.ReadFile("../../migrations/0001_init.sql")
	require.NoError(t, err)

	table := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS ledger_transactions \((.*?)\);`).
		FindSubmatch(schema)
	require.NotNil(t, table, "ledger_transactions missing from init migration")

	columns := []string{
		"id", "tx_type", "tx_date", "amount", "category",
		"account", "description", "source_type", "source_id", "created_at",
	}
	for _, col := range columns {
		require.Regexp(t, `(?m)^\s+`+col+`\s`, string(table[1]), "column %s", col)
	}
	require.Contains(t, string(table[1]), "UNIQUE (source_type, source_id)")
}
