package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/http/handlers"
	"github.com/taskhub/taskhub/internal/http/middlewares"
	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/redisclient"
	"github.com/taskhub/taskhub/internal/repo/postgres"
	"github.com/taskhub/taskhub/internal/sanitize"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func NewRouter(cfg config.Config, pool *pgxpool.Pool, rdb *redisclient.Client) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(prom.GinHandleMiddleware())
	r.Use(otelgin.Middleware("taskhub"))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	tasksRepo := postgres.NewTasksRepo(pool, prom)
	refreshRepo := postgres.NewRefreshTokensRepo(pool)

	jwt := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	sessions := auth.NewSessions(jwt, refreshRepo)
	sanitizer := sanitize.New()

	authHandler := handlers.NewAuthHandler(usersRepo, sessions, sanitizer, cfg)
	tasksHandler := handlers.NewTasksHandler(tasksRepo, usersRepo, sanitizer)
	usersHandler := handlers.NewUsersHandler(usersRepo, sessions, sanitizer)

	authMW := middlewares.NewAuthMiddleware(jwt)

	// login gets its own limiter; redis-backed when configured so the
	// window survives restarts and is shared across replicas
	var limiter middlewares.Limiter
	if rdb != nil {
		limiter = middlewares.NewRedisLimiter(rdb.Raw(), "ratelimit:login", cfg.LoginRateLimit, cfg.LoginRateWindow)
	} else {
		limiter = middlewares.NewMemoryLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)
	}

	// authenticated surface gets a looser per-user ceiling
	var apiLimiter middlewares.Limiter
	if rdb != nil {
		apiLimiter = middlewares.NewRedisLimiter(rdb.Raw(), "ratelimit:api", cfg.APIRateLimit, cfg.APIRateWindow)
	} else {
		apiLimiter = middlewares.NewMemoryLimiter(cfg.APIRateLimit, cfg.APIRateWindow)
	}
	perUser := middlewares.RateLimit(apiLimiter, middlewares.KeyByUserOrIP)

	// session routes
	r.POST("/users/login", middlewares.RateLimit(limiter, middlewares.KeyByIP), authHandler.Login)
	r.POST("/users/refresh", authHandler.Refresh)
	r.POST("/users/logout", authHandler.Logout)

	// task routes for the signed-in user
	tasks := r.Group("/tasks", authMW.RequireAuth(), perUser)
	tasks.GET("", tasksHandler.ListOwn)
	tasks.POST("", tasksHandler.Create)
	tasks.PUT("/:id", tasksHandler.Update)
	tasks.DELETE("/:id", tasksHandler.Delete)

	// admin routes live under their own prefix; gin keeps one radix tree
	// per method and rejects static siblings of a wildcard, so these
	// cannot share /tasks/:id and /users/login with the routes above
	admin := r.Group("/admin", authMW.RequireAuth(), authMW.RequireAdmin(), perUser)
	admin.POST("/users", usersHandler.Register)
	admin.GET("/users", usersHandler.List)
	admin.POST("/users/:id/promote", usersHandler.Promote)
	admin.DELETE("/users/:id", usersHandler.Delete)
	admin.GET("/tasks/:userId", tasksHandler.AdminListForUser)
	admin.POST("/tasks/assign", tasksHandler.Assign)
	admin.PUT("/tasks/:id", tasksHandler.AdminUpdate)
	admin.DELETE("/tasks/:id", tasksHandler.AdminDelete)

	return r
}
