package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/solidguard/internal/config"
)

func TestDSN(t *testing.T) {
	require.Equal(t, "postgres://x", DSN(config.DatabaseConfig{DSN: "postgres://x", Host: "ignored"}))
	require.Equal(t,
		"host=db port=5432 user=u password=p dbname=sg sslmode=disable",
		DSN(config.DatabaseConfig{Host: "db", User: "u", Password: "p", DBName: "sg"}))
}

func TestMigrationStatements(t *testing.T) {
	stmts, err := migrationStatements()
	require.NoError(t, err)
	require.NotEmpty(t, stmts)
	require.True(t, strings.HasPrefix(stmts[0], "CREATE EXTENSION"))
	var tables []string
	for _, s := range stmts {
		if strings.HasPrefix(s, "CREATE TABLE") {
			tables = append(tables, s)
		}
	}
	require.Len(t, tables, 2)
}
