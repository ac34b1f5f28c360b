package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/catalog_admin/pkg/logging"
	loggingmw "github.com/Skotchmaster/catalog_admin/pkg/middleware/logging"
	"github.com/Skotchmaster/catalog_admin/pkg/tokens"
)

const (
	ClaimsKey = "claims"

	LoginPath     = "/login"
	RegisterPath  = "/register"
	DashboardPath = "/dashboard"
)

type Guard struct {
	Auth *Authenticator
}

func NewGuard(a *Authenticator) *Guard {
	return &Guard{Auth: a}
}

// BearerToken extracts the credential from an "Authorization: Bearer <token>" header.
func BearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireBearer guards API routes. Public paths pass untouched; protected
// ones need a valid bearer token.
func (g *Guard) RequireBearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		if Classify(path) == Public {
			return next(c)
		}

		l := logging.FromContext(c.Request().Context()).With("middleware", "auth.bearer")

		claims, err := g.Auth.Authenticate(BearerToken(c.Request().Header.Get(echo.HeaderAuthorization)))
		switch {
		case errors.Is(err, ErrNoToken):
			l.Warn("auth_rejected", "status", http.StatusUnauthorized, "reason", "no token")
			return echo.NewHTTPError(http.StatusUnauthorized, "No token provided")
		case err != nil:
			l.Warn("auth_rejected", "status", http.StatusForbidden, "reason", "invalid token", "error", err)
			return echo.NewHTTPError(http.StatusForbidden, "Invalid or expired token")
		}

		setUserContext(c, claims)
		return next(c)
	}
}

// RequirePage guards navigation to the dashboard pages using the session
// cookie, with the same signature and expiry checks as the API guard.
func (g *Guard) RequirePage(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path

		var credential string
		if ck, err := c.Cookie(SessionCookie); err == nil {
			credential = ck.Value
		}

		claims, err := g.Auth.Authenticate(credential)
		authed := err == nil
		if err != nil && !errors.Is(err, ErrNoToken) {
			logging.FromContext(c.Request().Context()).Warn("page_session_rejected", "path", path, "error", err)
			c.SetCookie(DeleteCookie(SessionCookie, "/", c.Scheme() == "https"))
		}

		switch {
		case isDashboard(path) && !authed:
			return c.Redirect(http.StatusSeeOther, LoginPath)
		case authed && (path == LoginPath || path == RegisterPath):
			return c.Redirect(http.StatusSeeOther, DashboardPath)
		}

		if authed {
			setUserContext(c, claims)
		}
		return next(c)
	}
}

func isDashboard(path string) bool {
	return path == DashboardPath || strings.HasPrefix(path, DashboardPath+"/")
}

func setUserContext(c echo.Context, claims *tokens.Claims) {
	c.Set(ClaimsKey, claims)
	c.Set(loggingmw.SubjectKey, claims.Subject)
}
