package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/credsync/internal/domain"
	"github.com/persistorai/credsync/internal/middleware"
	"github.com/persistorai/credsync/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log           *logrus.Logger
	DB            HealthDB
	Hub           *ws.Hub
	Imports       domain.ImportService
	Credentials   domain.CredentialService
	OwnerLookup   middleware.OwnerLookup
	CORSOrigins   []string
	Version       string
	SchemaVersion int
}

// Router-level limits.
const (
	maxBodySize = 64 << 20 // 64 MB, large exports carry notes
	rateLimit   = 20       // requests per second per IP
	rateBurst   = 40
)

func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.Metrics())
}

func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	var hub ClientCounter
	if deps.Hub != nil {
		hub = deps.Hub
	}

	health := NewHealthHandler(deps.DB, hub, log, deps.Version, deps.SchemaVersion)
	imports := NewImportHandler(deps.Imports, log)
	creds := NewCredentialHandler(deps.Credentials, log)

	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	guard := middleware.NewAuthGuard(ctx, log)
	lookup := middleware.NewCachedOwnerLookup(ctx, deps.OwnerLookup)
	api.Use(middleware.Lockout(guard))
	api.Use(middleware.Auth(lookup, log, guard))

	api.POST("/imports/plan", imports.Plan)
	api.POST("/imports/apply", imports.Apply)
	api.GET("/imports/runs", imports.Runs)

	api.GET("/credentials", creds.List)
	api.PUT("/credentials/:id/ignored", creds.SetIgnored)

	if deps.Hub != nil {
		api.GET("/ws", wsHandler(ctx, log, deps.Hub, deps.CORSOrigins, deps.OwnerLookup))
	}
}

// NewRouter creates the gin engine with all middleware and routes. Metrics
// are served on their own listener, not here.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
