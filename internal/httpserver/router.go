package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Skotchmaster/catalog_admin/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/catalog_admin/pkg/middleware/logging"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	AuthHandler    *AuthHTTP
	CatalogHandler *CatalogHTTP
	Guard          *auth.Guard
	DB             Pinger

	// WebDir holds the built dashboard bundle; page routes 404 when empty.
	WebDir string

	// AuthRateLimit is requests per second per client ip on /auth, 0 disables it.
	AuthRateLimit float64
}

// UseCommon installs the middleware shared by every route. Client ips come
// from the socket, never from forwarding headers. The request logger wraps
// Recover so a panicking handler still gets its access log line.
func UseCommon(e *echo.Echo, logger *slog.Logger) {
	e.IPExtractor = echo.ExtractIPDirect()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = ErrorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB == nil {
			return c.NoContent(http.StatusOK)
		}
		if err := d.DB.Ping(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
		}
		return c.NoContent(http.StatusOK)
	})

	authMW := []echo.MiddlewareFunc{d.Guard.RequireBearer}
	if d.AuthRateLimit > 0 {
		authMW = append(authMW, authLimiter(d.AuthRateLimit))
	}
	authGroup := e.Group("/auth", authMW...)
	authGroup.POST("/signup", d.AuthHandler.Signup)
	authGroup.POST("/login", d.AuthHandler.Login)

	products := e.Group("/products", d.Guard.RequireBearer)
	products.GET("", d.CatalogHandler.GetProducts)
	products.POST("", d.CatalogHandler.CreateProduct)
	products.GET("/:id", d.CatalogHandler.GetProduct)
	products.PUT("/:id", d.CatalogHandler.PatchProduct)
	products.PATCH("/:id", d.CatalogHandler.PatchProduct)
	products.DELETE("/:id", d.CatalogHandler.DeleteProduct)

	registerPages(e, d)
}

func authLimiter(rps float64) echo.MiddlewareFunc {
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}
	directIP := echo.ExtractIPDirect()
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return directIP(c.Request()), nil
		},
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "cannot identify client")
		},
	})
}

func registerPages(e *echo.Echo, d *Deps) {
	servePage := func(c echo.Context) error {
		if d.WebDir == "" {
			return echo.NewHTTPError(http.StatusNotFound, "page bundle not configured")
		}
		return c.File(filepath.Join(d.WebDir, "index.html"))
	}

	if d.WebDir != "" {
		e.Static("/static", filepath.Join(d.WebDir, "static"))
		e.GET("/", servePage)
	}

	for _, path := range []string{auth.LoginPath, auth.RegisterPath, auth.DashboardPath, auth.DashboardPath + "/*"} {
		e.GET(path, servePage, d.Guard.RequirePage)
	}

	// unguarded pages; /products and /products/:id belong to the API
	for _, path := range []string{"/signup", "/edit/:id", "/products/:id/view"} {
		e.GET(path, servePage)
	}
}
