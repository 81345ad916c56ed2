package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/kolaffiliate/internal/authorization"
)

// authorizeAction checks the caller's role against the RBAC policy. It must
// run after AuthRequired.
func (s *Server) authorizeAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeActionWithContext(c *gin.Context, object string, action string) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), actor.Role, strings.TrimSpace(object), strings.TrimSpace(action))
}

// canPerform is the non-aborting form used where a denial narrows the
// response instead of rejecting it.
func (s *Server) canPerform(c *gin.Context, object string, action string) (bool, error) {
	err := s.authorizeActionWithContext(c, object, action)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidActor):
		return false, nil
	default:
		return false, err
	}
}
