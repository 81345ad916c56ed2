// Package seed bootstraps demo rows for self-hosted installs that start from
// an empty database. It never runs in production.
package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/kolaffiliate/internal/auth/domain"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	koldomain "github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	productdomain "github.com/smallbiznis/kolaffiliate/internal/product/domain"
	tierdomain "github.com/smallbiznis/kolaffiliate/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	demoAdminEmail   = "admin@kolaffiliate.local"
	demoAdminName    = "Affiliate Admin"
	demoKolEmail     = "kol@kolaffiliate.local"
	demoKolName      = "Demo KOL"
	demoProductName  = "Demo Serum 30ml"
	demoProductPrice = 150_000
)

var Module = fx.Module("seed",
	fx.Invoke(Run),
)

// Result holds the ids of the seeded rows so a developer can mint a token
// for them.
type Result struct {
	AdminID   int64
	KolID     int64
	ProductID int64
}

// Run seeds demo data when SEED_DEMO_DATA is on.
func Run(cfg config.Config, db *gorm.DB, node *snowflake.Node, log *zap.Logger) error {
	if !cfg.SeedDemoData {
		return nil
	}
	if cfg.IsProduction() {
		log.Warn("refusing to seed demo data in production")
		return nil
	}

	res, err := EnsureDemoData(context.Background(), db, node)
	if err != nil {
		return err
	}
	log.Info("demo data ready",
		zap.Int64("admin_id", res.AdminID),
		zap.Int64("kol_id", res.KolID),
		zap.Int64("product_id", res.ProductID),
	)
	return nil
}

// EnsureDemoData creates an admin, an approved bronze KOL and one product.
// Rows found by email or name are reused, so it is safe to call on every boot.
func EnsureDemoData(ctx context.Context, db *gorm.DB, node *snowflake.Node) (Result, error) {
	if db == nil {
		return Result{}, errors.New("seed database handle is required")
	}
	if node == nil {
		return Result{}, errors.New("seed id generator is required")
	}

	var res Result
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		admin, err := ensureUserTx(ctx, tx, node, koldomain.Kol{
			Name:  demoAdminName,
			Email: demoAdminEmail,
			Role:  authdomain.RoleAdmin,
		})
		if err != nil {
			return err
		}

		bronze := tierdomain.DefaultTable().RateFor(0)
		kol, err := ensureUserTx(ctx, tx, node, koldomain.Kol{
			Name:              demoKolName,
			Email:             demoKolEmail,
			Role:              authdomain.RoleKol,
			IsKol:             true,
			KolStatus:         koldomain.StatusApproved,
			KolTier:           bronze.Label,
			KolCommissionRate: bronze.RatePercent,
		})
		if err != nil {
			return err
		}

		product, err := ensureProductTx(ctx, tx, node)
		if err != nil {
			return err
		}

		res = Result{AdminID: admin.ID, KolID: kol.ID, ProductID: product.ID}
		return nil
	})
	return res, err
}

func ensureUserTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, want koldomain.Kol) (koldomain.Kol, error) {
	var user koldomain.Kol
	err := tx.WithContext(ctx).
		Where("email = ?", strings.ToLower(want.Email)).
		First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return user, err
	}

	want.ID = node.Generate().Int64()
	want.Email = strings.ToLower(want.Email)
	if err := tx.WithContext(ctx).Create(&want).Error; err != nil {
		return want, err
	}
	return want, nil
}

func ensureProductTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (productdomain.Product, error) {
	var product productdomain.Product
	err := tx.WithContext(ctx).Where("name = ?", demoProductName).First(&product).Error
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return product, err
	}

	product = productdomain.Product{
		ID:    node.Generate().Int64(),
		Name:  demoProductName,
		Price: demoProductPrice,
	}
	if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
		return product, err
	}
	return product, nil
}
