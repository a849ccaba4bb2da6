// internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cityreport-notifications/internal/common/logger"
	"cityreport-notifications/internal/dispatcher"
	"cityreport-notifications/internal/models"
	"cityreport-notifications/internal/store"
	"cityreport-notifications/internal/stream"

	"github.com/gin-gonic/gin"
)

// Departments is the directory slice the console's department picker needs.
type Departments interface {
	ListDepartments(ctx context.Context) ([]models.Department, error)
}

// Server exposes the fan-out engine over HTTP: the dispatch endpoint invoked
// by the surrounding application on every committed problem mutation, the
// notification REST surface used by client mutations, and the per-recipient
// SSE stream.
type Server struct {
	router      *gin.Engine
	dispatcher  *dispatcher.Dispatcher
	store       store.NotificationStore
	departments Departments
	subscriber  Subscriber
	logger      logger.Logger
	listLimit   int
}

// Subscriber hands out recipient-scoped row event channels for the SSE
// transport.
type Subscriber interface {
	Subscribe(recipientID string) (<-chan stream.RowEvent, func())
}

type Options struct {
	Dispatcher  *dispatcher.Dispatcher
	Store       store.NotificationStore
	Departments Departments
	Subscriber  Subscriber
	Logger      logger.Logger
	ListLimit   int
	CORSOrigins []string
}

func New(opts Options) *Server {
	if opts.ListLimit < 1 {
		opts.ListLimit = store.DefaultListLimit
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(Recovery(opts.Logger))
	router.Use(CORS(opts.CORSOrigins))

	s := &Server{
		router:      router,
		dispatcher:  opts.Dispatcher,
		store:       opts.Store,
		departments: opts.Departments,
		subscriber:  opts.Subscriber,
		logger:      opts.Logger.WithFields(map[string]interface{}{"component": "http-server"}),
		listLimit:   opts.ListLimit,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		api.POST("/dispatch", s.handleDispatch)

		notifications := api.Group("/notifications")
		{
			notifications.POST("", s.handleCreate)
			notifications.GET("", s.handleList)
			notifications.GET("/stream", s.handleStream)
			notifications.PUT("/read-all", s.handleMarkAllRead)
			notifications.PUT("/:id/read", s.handleMarkRead)
			notifications.DELETE("/:id", s.handleDelete)
		}

		api.GET("/departments", s.handleDepartments)
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP listener.
func (s *Server) Run(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}
