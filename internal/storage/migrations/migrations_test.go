package migrations

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	pg, err := load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Equal(t, "001_snapshots.sql", pg[0].name)
	assert.Contains(t, pg[0].sql, "treasury_snapshots")

	ch, err := load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	assert.Contains(t, ch[0].sql, "price_observations")

	for _, m := range ch {
		assert.NoError(t, validateNoSemicolonInStrings(m.sql), m.name)
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `
-- header comment
CREATE TABLE a (x UInt8) ENGINE = Memory;

-- second
CREATE TABLE b (
    y String
) ENGINE = Memory;
`
	stmts := splitStatements(sql)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x UInt8) ENGINE = Memory", stmts[0])
	assert.Contains(t, stmts[1], "y String")
	assert.NotContains(t, stmts[1], "--")

	assert.Empty(t, splitStatements("-- only a comment\n\n"))
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{"plain", "SELECT 1; SELECT 2;", false},
		{"string without semicolon", "SELECT 'a,b';", false},
		{"escaped quote", "SELECT 'it''s';", false},
		{"semicolon in string", "SELECT 'a;b';", true},
		{"semicolon after escaped quote", "SELECT 'it'';s';", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNoSemicolonInStrings(tt.sql)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrSemicolonInString))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/treasury")
	require.NoError(t, err)
	assert.Equal(t, "treasury", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
