// Package api serves the chat web UI and the HTTP API in front of the
// assistant.
package api

import (
	"context"
	"embed"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"atlasassist/assistant"
	"atlasassist/llm"
	"atlasassist/logging"
	"atlasassist/metrics"
)

//go:embed static
var staticFiles embed.FS

// Assistant is the part of the assistant service the API depends on.
type Assistant interface {
	ProcessMessage(sessionID, message string) (*assistant.ChatResponse, error)
	ToolsForSession(sessionID string) ([]llm.Tool, error)
}

// API represents the HTTP surface of the chat service.
type API struct {
	assistantService Assistant
	metricsService   metrics.Metrics
	metricsHandler   http.Handler
	httpServer       *http.Server
	log              logging.Logger
}

// New creates a new API instance
func New(assistantService Assistant, metricsService metrics.Metrics, log logging.Logger) *API {
	return &API{
		assistantService: assistantService,
		metricsService:   metricsService,
		metricsHandler:   metrics.NewMetricsHandler(metricsService),
		log:              log,
	}
}

// Router builds the gin router with every route registered.
func (a *API) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(a.ginlogger)
	router.Use(a.metricsMiddleware)

	router.GET("/", a.handleIndex)
	router.GET("/metrics", gin.WrapH(a.metricsHandler))

	apiRouter := router.Group("/api/v1")
	apiRouter.POST("/chat", a.handleChat)
	apiRouter.GET("/tools", a.handleGetTools)

	return router
}

// Start serves the chat UI and API and blocks until the server stops.
func (a *API) Start(addr string) error {
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.log.Info("Chat server listening", "addr", addr)
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "chat server error")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (a *API) Shutdown(ctx context.Context) error {
	a.log.Info("Chat server shutting down")
	if a.httpServer == nil {
		return nil
	}
	return a.httpServer.Shutdown(ctx)
}

func (a *API) ginlogger(c *gin.Context) {
	c.Next()

	for _, ginErr := range c.Errors {
		a.log.Error(ginErr.Error())
	}
}

func (a *API) metricsMiddleware(c *gin.Context) {
	a.metricsService.IncrementHTTPRequests()
	now := time.Now()

	c.Next()

	elapsed := float64(time.Since(now)) / float64(time.Second)

	status := c.Writer.Status()

	if status < 200 || status > 299 {
		a.metricsService.IncrementHTTPErrors()
	}

	endpoint := c.HandlerName()
	a.metricsService.ObserveAPIEndpointDuration(endpoint, c.Request.Method, strconv.Itoa(status), elapsed)
}

func (a *API) handleIndex(c *gin.Context) {
	page, err := staticFiles.ReadFile("static/chat.html")
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, errors.Wrap(err, "failed to read chat page"))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message" binding:"required"`
}

func (a *API) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := a.assistantService.ProcessMessage(req.SessionID, req.Message)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, errors.Wrap(err, "failed to process message"))
		return
	}

	c.JSON(http.StatusOK, response)
}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handleGetTools(c *gin.Context) {
	sessionID := c.DefaultQuery("sessionId", "discovery")

	tools, err := a.assistantService.ToolsForSession(sessionID)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, errors.Wrap(err, "failed to list tools"))
		return
	}

	result := make([]toolInfo, 0, len(tools))
	for _, tool := range tools {
		result = append(result, toolInfo{
			Name:        tool.Name,
			Description: tool.Description,
		})
	}

	c.JSON(http.StatusOK, result)
}
