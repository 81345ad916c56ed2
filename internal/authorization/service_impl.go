package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/kolaffiliate/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads policies from the casbin_rule table and tops up the
// built-in admin rules.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	e.EnableAutoSave(true)
	e.EnableAutoBuildRoleLinks(true)

	if err := e.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := ensurePolicies(e); err != nil {
		return nil, err
	}
	return e, e.BuildRoleLinks()
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role string, object string, action string) error {
	subject := roleSubject(role)
	object = strings.TrimSpace(object)
	action = strings.TrimSpace(action)
	switch {
	case subject == "":
		return ErrInvalidActor
	case object == "":
		return ErrInvalidObject
	case action == "":
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}
	logger.WithContext(ctx, s.log).Warn("authorization denied",
		zap.String("subject", subject),
		zap.String("object", object),
		zap.String("action", action),
	)
	return ErrForbidden
}
