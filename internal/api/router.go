// Package api exposes the print service over HTTP. Management routes sit
// behind cookie auth; the quick-print route stays open so shop-floor
// scanners can fire labels without a login flow.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"labelpress/internal/api/handlers"
	"labelpress/internal/api/middleware"
	"labelpress/internal/label"
	"labelpress/internal/queue"
	"labelpress/internal/transport"
)

type Options struct {
	Label   label.Spec
	Printer transport.Config
	Queue   *queue.Queue
	Conn    *transport.Conn
	Log     zerolog.Logger
}

func NewRouter(opts Options) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opts.Log))

	auth, err := middleware.NewAuthMiddleware()
	if err != nil {
		return nil, err
	}

	jobs := handlers.NewJobHandler(opts.Queue)
	labels := handlers.NewLabelHandler(opts.Label)
	printer := handlers.NewPrinterHandler(opts.Conn, opts.Printer)
	history := handlers.NewHistoryHandler()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/setup", auth.SetupHandler)
		authGroup.POST("/login", auth.LoginHandler)
		authGroup.POST("/logout", auth.LogoutHandler)
		authGroup.GET("/status", auth.StatusHandler)
		authGroup.POST("/password", auth.RequireAuth(), auth.ChangePasswordHandler)
	}

	api := r.Group("/api/v1")
	api.Use(auth.RequireAuth())
	{
		jobs.RegisterRoutes(api)
		labels.RegisterRoutes(api)
		printer.RegisterRoutes(api)
		history.RegisterRoutes(api)
	}

	// Unauthenticated quick-print path for scanner guns and line terminals.
	r.GET("/print/:location/:product/:packer", quickPrint(opts.Queue))

	return r, nil
}

func quickPrint(q *queue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, _, err := q.Submit(c.Request.Context(), queue.SubmitRequest{
			Location:    c.Param("location"),
			Product:     c.Param("product"),
			Packer:      c.Param("packer"),
			SubmittedBy: c.ClientIP(),
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ref":     job.Ref,
			"payload": job.Payload,
			"status":  "queued",
		})
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("request")
	}
}
