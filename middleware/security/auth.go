package security

import (
	"strings"

	"github.com/gin-gonic/gin"

	"NioBoard/global"
	"NioBoard/tools/errs"
	sec "NioBoard/tools/security"
)

// Context key under which the authenticated principal is stored.
const CtxPrincipalKey = "principal"

// Middleware extracts "Authorization: Bearer <jwt>", verifies it and
// stores the principal in the gin context.
func Middleware(opts sec.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if token == "" {
			global.Fail(c, errs.ErrToken.WithDetail("missing bearer token"))
			return
		}
		p, err := sec.Verify(opts, token)
		if err != nil {
			global.Fail(c, err)
			return
		}
		c.Set(CtxPrincipalKey, p)
		c.Next()
	}
}

// RequireAdmin gates admin-only routes; run it after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok || !p.IsAdmin() {
			global.Fail(c, errs.ErrAuthorization)
			return
		}
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (sec.Principal, bool) {
	v, ok := c.Get(CtxPrincipalKey)
	if !ok {
		return sec.Principal{}, false
	}
	p, ok := v.(sec.Principal)
	return p, ok
}
