package app

import (
	"database/sql"
	"net/http"

	"github.com/Torqued-codes/App/internal/cache"
	"github.com/Torqued-codes/App/internal/config"
	"github.com/Torqued-codes/App/internal/handlers"
	"github.com/Torqued-codes/App/internal/repo"
	"github.com/Torqued-codes/App/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"

	_ "github.com/Torqued-codes/App/docs"
)

// Setup registers all routes on the given engine. rdb may be nil.
func Setup(r *gin.Engine, cfg config.Config, db *sql.DB, rdb *redis.Client) {
	r.GET("/", rootHandler(cfg))
	r.GET("/health", healthHandler(cfg, db))
	r.GET("/version", versionHandler(cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
	))

	var taskCache *cache.TaskCache
	if rdb != nil {
		taskCache = cache.NewTaskCache(rdb, cfg.Redis.DefaultTTL.Duration())
	}
	taskRepo := repo.NewSQLiteTaskRepo(db)
	taskSvc := service.NewTaskService(taskRepo, taskCache)
	taskHandler := handlers.NewTaskHandler(taskSvc)
	registerTaskRoutes(r, taskHandler)
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Tasks API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
			"api":     "/tasks",
		})
	}
}

func healthHandler(cfg config.Config, db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "env": cfg.App.Env, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "env": cfg.App.Env})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerTaskRoutes(r gin.IRoutes, h *handlers.TaskHandler) {
	r.GET("/tasks", h.List)
	r.POST("/tasks", h.Create)
	r.GET("/tasks/:id", h.GetByID)
	r.PUT("/tasks/:id", h.Update)
	r.DELETE("/tasks/:id", h.Delete)
}
