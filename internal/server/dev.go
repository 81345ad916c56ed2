package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/kolaffiliate/internal/auth/domain"
)

const devTokenTTL = 24 * time.Hour

type devTokenRequest struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
}

func (s *Server) registerDevRoutes() {
	s.engine.POST("/auth/logout", s.Logout)

	if s.cfg.IsProduction() {
		return
	}
	s.engine.POST("/dev/token", s.IssueDevToken)
}

// IssueDevToken mints a session for local testing. It is never routed in
// production.
func (s *Server) IssueDevToken(c *gin.Context) {
	if s.cfg.IsProduction() {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.UserID <= 0 {
		AbortWithError(c, newValidationError("userId", "required", "userId is required"))
		return
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = authdomain.RoleKol
	}

	actor := authdomain.Actor{UserID: req.UserID, Role: role}
	token, err := s.verifier.Issue(actor, devTokenTTL)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	expiresAt := time.Now().Add(devTokenTTL)
	s.sessions.Set(c, token, expiresAt)

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt.UTC(),
		"userId":    actor.Subject(),
		"role":      actor.Role,
	})
}

func (s *Server) Logout(c *gin.Context) {
	s.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}
