package seed

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kolaffiliate/internal/affiliatetest"
	authdomain "github.com/smallbiznis/kolaffiliate/internal/auth/domain"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	koldomain "github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	productdomain "github.com/smallbiznis/kolaffiliate/internal/product/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	return node
}

func TestEnsureDemoDataIsIdempotent(t *testing.T) {
	db := affiliatetest.OpenDB(t)
	node := newNode(t)
	ctx := context.Background()

	first, err := EnsureDemoData(ctx, db, node)
	require.NoError(t, err)
	second, err := EnsureDemoData(ctx, db, node)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	var users int64
	require.NoError(t, db.Model(&koldomain.Kol{}).Count(&users).Error)
	assert.Equal(t, int64(2), users)

	var products int64
	require.NoError(t, db.Model(&productdomain.Product{}).Count(&products).Error)
	assert.Equal(t, int64(1), products)
}

func TestEnsureDemoDataSeedsApprovedKol(t *testing.T) {
	db := affiliatetest.OpenDB(t)

	res, err := EnsureDemoData(context.Background(), db, newNode(t))
	require.NoError(t, err)

	var kol koldomain.Kol
	require.NoError(t, db.First(&kol, res.KolID).Error)
	assert.True(t, kol.Approved())
	assert.Equal(t, "bronze", kol.KolTier)
	assert.Equal(t, 3.0, kol.KolCommissionRate)

	var admin koldomain.Kol
	require.NoError(t, db.First(&admin, res.AdminID).Error)
	assert.Equal(t, authdomain.RoleAdmin, admin.Role)
	assert.False(t, admin.Approved())
}

func TestRunSkipsProductionAndDisabled(t *testing.T) {
	db := affiliatetest.OpenDB(t)
	node := newNode(t)

	require.NoError(t, Run(config.Config{Environment: "development"}, db, node, zap.NewNop()))
	require.NoError(t, Run(config.Config{Environment: "production", SeedDemoData: true}, db, node, zap.NewNop()))

	var users int64
	require.NoError(t, db.Model(&koldomain.Kol{}).Count(&users).Error)
	assert.Zero(t, users)

	require.NoError(t, Run(config.Config{Environment: "development", SeedDemoData: true}, db, node, zap.NewNop()))
	require.NoError(t, db.Model(&koldomain.Kol{}).Count(&users).Error)
	assert.Equal(t, int64(2), users)
}
