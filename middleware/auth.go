package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/citis/sapro/utils"
)

const (
	// ContextSessionKey stores the authenticated utils.Session inside Gin context.
	ContextSessionKey = "session"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(ctx *gin.Context) string {
	parts := strings.SplitN(ctx.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthRequired rejects requests whose bearer token is not a live session.
func AuthRequired(sessions *utils.SessionManager) gin.HandlerFunc {
	return authenticate(sessions, false)
}

// AuthRequiredOrQuery is AuthRequired that also accepts ?token=, for links the
// browser opens directly (PDF viewer tabs).
func AuthRequiredOrQuery(sessions *utils.SessionManager) gin.HandlerFunc {
	return authenticate(sessions, true)
}

func authenticate(sessions *utils.SessionManager, allowQuery bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := BearerToken(ctx)
		if token == "" && allowQuery {
			token = strings.TrimSpace(ctx.Query("token"))
		}
		if token == "" {
			utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
			ctx.Abort()
			return
		}

		session, ok := sessions.Lookup(token)
		if !ok {
			utils.Sugar.Debugw("rejected token", "path", ctx.Request.URL.Path, "ip", ctx.ClientIP())
			utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
			ctx.Abort()
			return
		}

		ctx.Set(ContextSessionKey, session)
		ctx.Set(ContextUsernameKey, session.Username)
		ctx.Next()
	}
}
