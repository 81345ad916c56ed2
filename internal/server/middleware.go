package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/kolaffiliate/internal/auth/domain"
	koldomain "github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	obscontext "github.com/smallbiznis/kolaffiliate/internal/observability/context"
	"github.com/smallbiznis/kolaffiliate/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	contextActorKey = "actor"
	contextKolKey   = "kol"
)

// AuthRequired resolves the caller from the bearer header or the session
// cookie and rejects the request when neither carries a valid token.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor, err := s.verifier.Verify(token)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("token rejected", zap.Error(err))
			AbortWithError(c, err)
			return
		}

		c.Set(contextActorKey, actor)
		ctx := obscontext.WithActor(c.Request.Context(), actor.Role, actor.Subject())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireApprovedKol only lets approved KOLs through. It must run after
// AuthRequired.
func (s *Server) RequireApprovedKol() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		kol, err := s.kolSvc.RequireApproved(c.Request.Context(), actor.UserID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextKolKey, kol)
		ctx := obscontext.WithKolID(c.Request.Context(), strconv.FormatInt(kol.ID, 10))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func actorFromContext(c *gin.Context) (authdomain.Actor, bool) {
	value, ok := c.Get(contextActorKey)
	if !ok {
		return authdomain.Actor{}, false
	}
	actor, ok := value.(authdomain.Actor)
	if !ok || actor.UserID <= 0 {
		return authdomain.Actor{}, false
	}
	return actor, true
}

func kolFromContext(c *gin.Context) (*koldomain.Kol, bool) {
	value, ok := c.Get(contextKolKey)
	if !ok {
		return nil, false
	}
	kol, ok := value.(*koldomain.Kol)
	return kol, ok && kol != nil
}
