package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"bitbucket.org/greenops/fieldops_backend/config"
	"bitbucket.org/greenops/fieldops_backend/directives"
	"bitbucket.org/greenops/fieldops_backend/graph"
	"bitbucket.org/greenops/fieldops_backend/middlewares"
	"bitbucket.org/greenops/fieldops_backend/models"
	gqlhandler "github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ravilushqa/otelgqlgen"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("fieldops-backend")

// RateLimiter counts requests in Redis. Requests pass unlimited while Redis
// is not connected.
type RateLimiter struct {
	client func() *redis.Client
	limit  int64
	window time.Duration
}

// Cache stores automatic persisted queries in Redis. Lookups miss while
// Redis is not connected.
type Cache struct {
	client func() *redis.Client
	ttl    time.Duration
}

const apqPrefix = "apq:"

func NewCache(client func() *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Add(ctx context.Context, key string, value interface{}) {
	if client := c.client(); client != nil {
		client.Set(ctx, apqPrefix+key, value, c.ttl)
	}
}

func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	client := c.client()
	if client == nil {
		return struct{}{}, false
	}
	s, err := client.Get(ctx, apqPrefix+key).Result()
	if err != nil {
		return struct{}{}, false
	}
	return s, true
}

// storeHolder swaps in the repository once the database is ready.
type storeHolder struct {
	v atomic.Value
}

func (h *storeHolder) get() models.RecordRepository {
	repo, _ := h.v.Load().(models.RecordRepository)
	return repo
}

func (h *storeHolder) set(repo models.RecordRepository) {
	h.v.Store(repo)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

// newRouter builds the HTTP API over repo. Tables are read and edited through
// GraphQL at /query; exports are plain downloads.
func newRouter(h *handler, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.MetricsMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", middlewares.MetricsHandler())

	r.Use(cors.New(corsConfig()))
	r.GET("/", playgroundHandler())

	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		r.Use(NewRateLimiter(config.GetRedisDB, limit, time.Duration(windowSec)*time.Second).RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(h.readinessGate())
	r.Use(middlewares.LoaderMiddleware(h.repo))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/query", graphqlHandler(h))

	table := r.Group("/sites/:siteId/tables/:kind", middlewares.RequireAuth(), middlewares.SiteContextMiddleware())
	table.GET("/export", h.exportRecords)

	r.NoRoute(customNotFoundHandler)
	return r
}

// Defining the Graphql handler
func graphqlHandler(h *handler) gin.HandlerFunc {
	c := graph.Config{Resolvers: &graph.Resolver{
		Tracer:   tracer,
		Repo:     h.repo,
		Sessions: h.sessionManager,
		Now:      h.clock,
	}}
	c.Directives.Auth = directives.Auth

	srv := gqlhandler.NewDefaultServer(graph.NewExecutableSchema(c))
	srv.Use(otelgqlgen.Middleware())
	srv.Use(extension.AutomaticPersistedQuery{Cache: NewCache(config.GetRedisDB, 24*time.Hour)})
	srv.SetErrorPresenter(graph.ErrorPresenter)
	return func(c *gin.Context) {
		srv.ServeHTTP(c.Writer, c.Request)
	}
}

// Defining the Playground handler
func playgroundHandler() gin.HandlerFunc {
	h := playground.Handler("GraphQL", "/query")

	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	// In production CORS_ALLOWED_ORIGINS is required; elsewhere every origin is allowed.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationIdHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationIdHeader)
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	return corsConfig
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	store := &storeHolder{}
	h := newHandler(store.get)

	// Start the HTTP server first; app endpoints answer 503 until the store is ready.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(h, logger),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	if config.UseMemoryStore() {
		fixtures, err := models.NewFixtureStore()
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "fixtures"}).Fatal(err.Error())
		}
		store.set(fixtures)
		logger.WithFields(logrus.Fields{"field": "store"}).Warn("STORE_DRIVER=memory; serving fixture data")
	} else {
		config.ConnectDatabaseWithRetry()
		config.ConnectRedisWithRetry()

		db := config.GetDB()
		sqlDB, _ := db.DB()
		defer func() {
			if sqlDB != nil {
				_ = sqlDB.Close()
			}
		}()
		// AutoMigrate can block tables; run it as a separate job when SKIP_MIGRATIONS=true.
		if !config.SkipMigrations() {
			models.MigrateTable()
		} else {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
		}

		for attempt := 1; ; attempt++ {
			err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
			if err == nil {
				break
			}
			sleep := time.Second * time.Duration(1<<min(attempt, 5))
			logger.WithFields(logrus.Fields{
				"field":   "database",
				"attempt": attempt,
			}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
			time.Sleep(sleep)
		}
		store.set(models.NewGormStore())
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("connect to http://localhost:", port, "/ for GraphQL playground")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func NewRateLimiter(client func() *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// RateLimitMiddleware counts requests per client IP in fixed windows.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	client := rl.client()
	if client == nil {
		c.Next()
		return
	}
	key := "RateLimit:" + c.ClientIP()

	count, err := client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count == 1 {
		if err := client.Expire(c.Request.Context(), key, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
