// Package affiliatetest opens isolated in-memory databases carrying the
// affiliate schema and seeds fixtures for package tests.
package affiliatetest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

var schema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'customer',
		is_kol BOOLEAN NOT NULL DEFAULT 0,
		kol_status TEXT,
		kol_tier TEXT,
		kol_commission_rate REAL NOT NULL DEFAULT 0,
		total_sales REAL NOT NULL DEFAULT 0,
		total_followers INTEGER NOT NULL DEFAULT 0,
		kol_tier_updated_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE products (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		price REAL NOT NULL DEFAULT 0,
		image_url TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE affiliate_links (
		id INTEGER PRIMARY KEY,
		kol_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		short_code TEXT NOT NULL UNIQUE,
		original_url TEXT NOT NULL,
		short_url TEXT NOT NULL,
		platform TEXT,
		click_count INTEGER NOT NULL DEFAULT 0,
		conversions INTEGER NOT NULL DEFAULT 0,
		revenue REAL NOT NULL DEFAULT 0,
		commission REAL NOT NULL DEFAULT 0,
		expires_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE affiliate_clicks (
		id INTEGER PRIMARY KEY,
		link_id INTEGER NOT NULL,
		kol_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		referrer_url TEXT NOT NULL DEFAULT '',
		geo_location TEXT,
		clicked_at DATETIME NOT NULL,
		converted BOOLEAN NOT NULL DEFAULT 0,
		conversion_id INTEGER
	)`,
	`CREATE TABLE affiliate_orders (
		id INTEGER PRIMARY KEY,
		kol_id INTEGER NOT NULL,
		order_id TEXT NOT NULL,
		product_id INTEGER NOT NULL,
		link_id INTEGER NOT NULL,
		click_id INTEGER,
		quantity INTEGER NOT NULL,
		unit_price REAL NOT NULL,
		revenue REAL NOT NULL,
		commission_rate REAL NOT NULL,
		commission REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attribution_type TEXT NOT NULL,
		reason TEXT NOT NULL,
		metadata TEXT,
		confirmed_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (order_id, product_id, kol_id)
	)`,
}

// OpenDB returns a fresh shared-cache in-memory database for t. The pool is
// pinned to one connection so concurrent writers serialize like row locks.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("%s_%d", unsafeName.ReplaceAllString(t.Name(), "_"), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	stripRowLocks(db)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func stripRowLocks(db *gorm.DB) {
	strip := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if !strings.Contains(sql, "FOR UPDATE") {
			return
		}
		sql = strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
		sql = strings.ReplaceAll(sql, "FOR UPDATE", "")
		d.Statement.SQL.Reset()
		d.Statement.SQL.WriteString(sql)
	}
	_ = db.Callback().Query().Before("gorm:query").Register("sqlite_strip_row_lock", strip)
	_ = db.Callback().Row().Before("gorm:row").Register("sqlite_strip_row_lock_row", strip)
	_ = db.Callback().Raw().Before("gorm:raw").Register("sqlite_strip_row_lock_raw", strip)
}

// Seeder inserts fixtures directly, bypassing services.
type Seeder struct {
	db *gorm.DB
}

func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

type KolFixture struct {
	ID          int64
	Status      string
	Tier        string
	RatePercent float64
	TotalSales  float64
	Role        string
}

func (s *Seeder) Kol(t testing.TB, k KolFixture) {
	t.Helper()
	if k.Status == "" {
		k.Status = "approved"
	}
	if k.Role == "" {
		k.Role = "kol"
	}
	var tier any
	if k.Tier != "" {
		tier = k.Tier
	}
	err := s.db.Exec(
		`INSERT INTO users (id, name, email, role, is_kol, kol_status, kol_tier, kol_commission_rate, total_sales)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ID, fmt.Sprintf("kol-%d", k.ID), fmt.Sprintf("kol%d@example.com", k.ID), k.Role,
		true, k.Status, tier, k.RatePercent, k.TotalSales,
	).Error
	if err != nil {
		t.Fatalf("seed kol: %v", err)
	}
}

func (s *Seeder) Customer(t testing.TB, id int64, role string) {
	t.Helper()
	if err := s.db.Exec(
		`INSERT INTO users (id, name, email, role, is_kol) VALUES (?, ?, ?, ?, ?)`,
		id, fmt.Sprintf("user-%d", id), fmt.Sprintf("user%d@example.com", id), role, false,
	).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func (s *Seeder) Product(t testing.TB, id int64, name string, price float64) {
	t.Helper()
	if err := s.db.Exec(
		`INSERT INTO products (id, name, price) VALUES (?, ?, ?)`, id, name, price,
	).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

type LinkFixture struct {
	ID        int64
	KolID     int64
	ProductID int64
	ShortCode string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (s *Seeder) Link(t testing.TB, l LinkFixture) {
	t.Helper()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Exec(
		`INSERT INTO affiliate_links (id, kol_id, product_id, short_code, original_url, short_url, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.KolID, l.ProductID, l.ShortCode,
		fmt.Sprintf("http://shop.test/detail-product/%d?ref=%d", l.ProductID, l.KolID),
		"http://shop.test/a/"+l.ShortCode,
		l.ExpiresAt, l.CreatedAt, l.CreatedAt,
	).Error; err != nil {
		t.Fatalf("seed link: %v", err)
	}
}

type ClickFixture struct {
	ID        int64
	LinkID    int64
	KolID     int64
	ProductID int64
	ClickedAt time.Time
	Converted bool
}

func (s *Seeder) Click(t testing.TB, c ClickFixture) {
	t.Helper()
	if err := s.db.Exec(
		`INSERT INTO affiliate_clicks (id, link_id, kol_id, product_id, clicked_at, converted)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.LinkID, c.KolID, c.ProductID, c.ClickedAt.UTC(), c.Converted,
	).Error; err != nil {
		t.Fatalf("seed click: %v", err)
	}
}

type OrderFixture struct {
	ID          int64
	KolID       int64
	OrderID     string
	ProductID   int64
	LinkID      int64
	Quantity    int
	UnitPrice   float64
	Revenue     float64
	RatePercent float64
	Commission  float64
	Status      string
	CreatedAt   time.Time
}

func (s *Seeder) Order(t testing.TB, o OrderFixture) {
	t.Helper()
	if o.Status == "" {
		o.Status = "pending"
	}
	if o.Quantity == 0 {
		o.Quantity = 1
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Exec(
		`INSERT INTO affiliate_orders (id, kol_id, order_id, product_id, link_id, quantity, unit_price, revenue,
		   commission_rate, commission, status, attribution_type, reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'specific', 'product_match', ?, ?)`,
		o.ID, o.KolID, o.OrderID, o.ProductID, o.LinkID, o.Quantity, o.UnitPrice, o.Revenue,
		o.RatePercent, o.Commission, o.Status, o.CreatedAt, o.CreatedAt,
	).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

// TimeAccelerator rewrites stored timestamps so window rules can be exercised
// without sleeping.
type TimeAccelerator struct {
	db *gorm.DB
}

func NewTimeAccelerator(db *gorm.DB) *TimeAccelerator {
	return &TimeAccelerator{db: db}
}

// SetClickTime moves every click of a link to at.
func (ta *TimeAccelerator) SetClickTime(ctx context.Context, linkID int64, at time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE affiliate_clicks SET clicked_at = ? WHERE link_id = ?`,
		at.UTC(),
		linkID,
	).Error
}
