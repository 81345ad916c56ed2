package domain

import (
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleKol   = "kol"
	RoleAdmin = "admin"
)

// Actor is the authenticated caller behind a request.
type Actor struct {
	UserID int64
	Role   string
}

func (a Actor) IsAdmin() bool {
	return strings.EqualFold(a.Role, RoleAdmin)
}

// Subject is the string form used in logs and as the JWT subject.
func (a Actor) Subject() string {
	return strconv.FormatInt(a.UserID, 10)
}

// Claims is the token payload. The user id travels in the registered
// "sub" claim.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
