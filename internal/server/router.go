// Package server assembles the gin engine: middleware stages, rate
// ceilings and every route.
package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"toolshed/internal/catalog"
	"toolshed/internal/feed"
	"toolshed/internal/ratelimit"
	"toolshed/internal/reviews"
	"toolshed/internal/security"
	"toolshed/internal/telemetry"
	"toolshed/internal/web"
	"toolshed/pkg/utils"
)

type Deps struct {
	Config  utils.Config
	DB      *sql.DB
	Reviews *reviews.Repo
	Catalog *catalog.Loader
	Hub     *feed.Hub
	Metrics *telemetry.Metrics
	Logger  *zap.Logger
}

func NewRouter(d Deps) (*gin.Engine, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NewMetrics()
	}
	if d.Hub == nil {
		d.Hub = feed.NewHub(d.Logger)
	}

	router := gin.New()
	router.RemoteIPHeaders = []string{"X-Forwarded-For"}
	if err := router.SetTrustedProxies(d.Config.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	router.Use(
		telemetry.RequestLogger(d.Logger),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			d.Logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		d.Metrics.Instrument(),
		security.Headers(),
	)

	rl := d.Config.RateLimit
	global := ratelimit.NewLimiter("global", rl.IdleTTL,
		ratelimit.PerHour(rl.GlobalPerHour),
		ratelimit.PerDay(rl.GlobalPerDay),
	)
	home := ratelimit.NewLimiter("home", rl.IdleTTL, ratelimit.PerMinute(rl.HomePerMinute))
	api := ratelimit.NewLimiter("api", rl.IdleTTL, ratelimit.PerMinute(rl.APIPerMinute))
	globalOnly := ratelimit.Guard(d.Metrics, global)

	// Homepage
	csrf := security.NewCSRF(d.Config.SecretKey)
	if err := csrf.TrustProxies(d.Config.TrustedProxies); err != nil {
		return nil, err
	}
	homeHandler := reviews.NewHandler(d.Reviews, d.Catalog.WithMetrics(d.Metrics), csrf, d.Logger)
	homeHandler.Feed = d.Hub
	homeHandler.Metrics = d.Metrics
	homeHandler.RegisterRoutes(router, ratelimit.Guard(d.Metrics, global, home))

	// Catalog API
	catalog.NewHandler(d.Catalog).RegisterRoutes(router.Group("/api"), ratelimit.Guard(d.Metrics, global, api))

	// Static
	router.GET("/robots.txt", globalOnly, staticFile(d.Config.StaticDir, "robots.txt"))
	router.GET("/sitemap.xml", globalOnly, staticFile(d.Config.StaticDir, "sitemap.xml"))

	// Operational
	ops := &opsHandler{db: d.DB, repo: d.Reviews, hub: d.Hub, dbPath: d.Config.DBPath}
	router.GET("/health", globalOnly, ops.health)
	router.GET("/ready", globalOnly, ops.ready)
	router.GET("/ws/reviews", globalOnly, feed.WSHandler(d.Hub))

	router.NoRoute(globalOnly, func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router, nil
}

func staticFile(dir, name string) gin.HandlerFunc {
	path := filepath.Join(dir, name)
	return func(c *gin.Context) {
		c.File(path)
	}
}
