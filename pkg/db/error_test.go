package db

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: affiliate_links.short_code")))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062: Duplicate entry")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestDialectNames(t *testing.T) {
	for _, kind := range []string{"postgres", "mysql", "sqlite"} {
		d, err := Dialect(config.Config{DBType: kind, DBHost: "localhost", DBPort: "5432", DBName: "kol"})
		require.NoError(t, err, kind)
		assert.Equal(t, kind, d.Name())
	}

	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.ErrorContains(t, err, "oracle")
}

func TestPostgresDSNPinsUTC(t *testing.T) {
	dsn := postgresDSN(config.Config{DBUser: "kol", DBPassword: "p@ss", DBHost: "db", DBPort: "5432", DBName: "affiliate", DBSSLMode: "disable"})
	assert.True(t, strings.HasPrefix(dsn, "postgres://kol:p%40ss@db:5432/affiliate?"), dsn)
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "TimeZone=UTC")
}

func TestMySQLDSNParsesTime(t *testing.T) {
	dsn := mysqlDSN(config.Config{DBUser: "kol", DBPassword: "secret", DBHost: "db", DBPort: "3306", DBName: "affiliate"})
	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "affiliate", parsed.DBName)
}
