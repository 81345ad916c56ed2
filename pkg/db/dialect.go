package db

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const defaultSQLiteFile = "kolaffiliate.db"

// Dialect picks the gorm driver for DB_TYPE. Every connection is pinned to
// UTC so daily buckets line up across drivers.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch cfg.DBType {
	case "postgres":
		return postgres.Open(postgresDSN(cfg)), nil
	case "mysql":
		return gormmysql.Open(mysqlDSN(cfg)), nil
	case "sqlite":
		name := cfg.DBName
		if name == "" || name == "postgres" {
			name = defaultSQLiteFile
		}
		return sqlite.Open(name), nil
	}
	return nil, fmt.Errorf("unsupported database type %q", cfg.DBType)
}

func postgresDSN(cfg config.Config) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:   net.JoinHostPort(cfg.DBHost, cfg.DBPort),
		Path:   "/" + cfg.DBName,
	}
	q := url.Values{}
	if cfg.DBSSLMode != "" {
		q.Set("sslmode", cfg.DBSSLMode)
	}
	q.Set("TimeZone", "UTC")
	u.RawQuery = q.Encode()
	return u.String()
}

func mysqlDSN(cfg config.Config) string {
	c := mysql.NewConfig()
	c.User = cfg.DBUser
	c.Passwd = cfg.DBPassword
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	c.DBName = cfg.DBName
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}
