package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"libraryhub/internal/apierr"
	"libraryhub/pkg/models"
)

const CtxUsernameKey = "username"
const CtxRoleKey = "role"

// Capability names who may call an endpoint.
type Capability int

const (
	CapUser Capability = iota + 1
	CapLibrarian
	CapBoth
)

func (c Capability) allows(r models.Role) bool {
	switch c {
	case CapUser:
		return r == models.RoleUser
	case CapLibrarian:
		return r == models.RoleLibrarian
	case CapBoth:
		return r == models.RoleUser || r == models.RoleLibrarian
	}
	return false
}

// IdentityStore resolves a token's username to the role stored for it now.
// A missing user is reported as an apierr NotFound.
type IdentityStore interface {
	RoleOf(ctx context.Context, username string) (models.Role, error)
}

type Gate struct {
	secret []byte
	store  IdentityStore
}

func NewGate(secret []byte, store IdentityStore) *Gate {
	return &Gate{secret: secret, store: store}
}

// Require lets the request through only with a valid bearer token whose user
// still exists and holds a role allowed by c.
func (g *Gate) Require(c Capability) gin.HandlerFunc {
	return g.require(c, false)
}

// RequireQueryToken is Require for browser websocket upgrades, which cannot
// set headers: the token may come in the "token" query parameter instead.
func (g *Gate) RequireQueryToken(c Capability) gin.HandlerFunc {
	return g.require(c, true)
}

func (g *Gate) require(capability Capability, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c.GetHeader("Authorization"))
		if !ok && allowQuery {
			tokenStr = c.Query("token")
			ok = tokenStr != ""
		}
		if !ok {
			abort(c, http.StatusUnauthorized, "Unauthorized Access. Please Login.")
			return
		}
		claims, err := ParseJWT(g.secret, tokenStr)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid Token.")
			return
		}

		role, err := g.store.RoleOf(c.Request.Context(), claims.Username)
		if err != nil {
			if apierr.From(err).Kind == apierr.KindNotFound {
				abort(c, http.StatusBadRequest, "Bad Request.")
				return
			}
			slog.ErrorContext(c.Request.Context(), "resolve identity", "username", claims.Username, "err", err)
			abort(c, http.StatusInternalServerError, "Internal Server Error.")
			return
		}
		if !capability.allows(role) {
			abort(c, http.StatusForbidden, "Forbidden.")
			return
		}

		c.Set(CtxUsernameKey, claims.Username)
		c.Set(CtxRoleKey, role)
		c.Next()
	}
}

func bearer(h string) (string, bool) {
	if h == "" || !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return tok, tok != ""
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

// Username returns the caller set by the gate.
func Username(c *gin.Context) string {
	return c.GetString(CtxUsernameKey)
}

func Role(c *gin.Context) models.Role {
	v, _ := c.Get(CtxRoleKey)
	r, _ := v.(models.Role)
	return r
}
