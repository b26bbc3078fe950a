package middleware

import "github.com/labstack/echo/v4"

// Context keys filled in by JWTAuth.
const (
	ctxSubject = "user_id"
	ctxRole    = "role"
)

// subject returns the authenticated subject, or "anon" for public callers.
func subject(c echo.Context) string {
	if s, ok := c.Get(ctxSubject).(string); ok && s != "" {
		return s
	}
	return "anon"
}
