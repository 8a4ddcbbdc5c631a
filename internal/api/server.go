// Package api serves the method channels to UI clients over WebSocket and
// mirrors them as plain HTTP endpoints
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/thereceipt/pos-bridge/internal/channel"
	"github.com/thereceipt/pos-bridge/internal/deeplink"
	"github.com/thereceipt/pos-bridge/internal/printer"
)

// Options configures a Server
type Options struct {
	// PrintChannel is the only channel whose calls reach the router
	PrintChannel string
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
	// Printers lists attached printers for /printers
	Printers func() []*printer.Printer
	Logger   *zap.Logger
}

// Server is the API server
type Server struct {
	engine       *gin.Engine
	httpServer   *http.Server
	router       *channel.Router
	notifier     *deeplink.Notifier
	hub          *Hub
	printChannel string
	printers     func() []*printer.Printer
	upgrader     websocket.Upgrader
	log          *zap.Logger
}

// NewServer creates a new API server
func NewServer(router *channel.Router, notifier *deeplink.Notifier, hub *Hub, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(opts.Logger), corsMiddleware())

	s := &Server{
		engine:       engine,
		router:       router,
		notifier:     notifier,
		hub:          hub,
		printChannel: opts.PrintChannel,
		printers:     opts.Printers,
		upgrader: websocket.Upgrader{
			// The UI is served from a local webview origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: opts.Logger,
	}
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.setupRoutes(opts.Gatherer)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.engine.POST("/call/:method", s.handleCall)
	s.engine.POST("/activate", s.handleActivate)
	s.engine.GET("/printers", s.handleGetPrinters)
	s.engine.GET("/ws", s.handleWebSocket)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.hub.ClientCount()})
	})
}

// Handler exposes the routes, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// dispatch routes one call. Calls on any channel but the print channel
// are not implemented.
func (s *Server) dispatch(channelName, method string, raw json.RawMessage, reply channel.Reply) {
	if channelName != s.printChannel {
		s.log.Debug("call on unknown channel", zap.String("channel", channelName), zap.String("method", method))
		reply.NotImplemented()
		return
	}

	args, err := channel.DecodeArguments(raw)
	if err != nil {
		reply.Error(channel.CodeArgument, err.Error(), nil)
		return
	}

	s.router.Handle(channel.Call{Method: method, Arguments: args}, reply)
}

// handleCall mirrors a method call over HTTP and waits for its reply
func (s *Server) handleCall(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": channel.CodeArgument, "message": err.Error()}})
		return
	}

	outcomes := make(chan channel.Outcome, 1)
	s.dispatch(c.DefaultQuery("channel", s.printChannel), c.Param("method"), raw,
		channel.ReplyFunc(func(o channel.Outcome) { outcomes <- o }))

	select {
	case o := <-outcomes:
		writeOutcome(c, o)
	case <-c.Request.Context().Done():
		// The request still completes; only its reply is lost
		s.log.Debug("caller went away before reply", zap.String("method", c.Param("method")))
	}
}

func writeOutcome(c *gin.Context, o channel.Outcome) {
	switch o.Status {
	case channel.StatusSuccess:
		c.JSON(http.StatusOK, gin.H{"result": o.Result})
	case channel.StatusError:
		status := http.StatusInternalServerError
		switch o.Code {
		case channel.CodeArgument:
			status = http.StatusBadRequest
		case channel.CodeDevice:
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": FrameErr{Code: o.Code, Message: o.Message, Details: o.Details}})
	default:
		c.JSON(http.StatusNotImplemented, gin.H{"not_implemented": true})
	}
}

// handleActivate delivers a deep-link activation
func (s *Server) handleActivate(c *gin.Context) {
	var req struct {
		URI string `json:"uri"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid activation body"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"forwarded": s.notifier.Activate(req.URI)})
}

// handleGetPrinters returns the attached printers
func (s *Server) handleGetPrinters(c *gin.Context) {
	printers := []*printer.Printer{}
	if s.printers != nil {
		printers = append(printers, s.printers()...)
	}
	sort.Slice(printers, func(i, j int) bool {
		return printers[i].ID < printers[j].ID
	})

	c.JSON(http.StatusOK, gin.H{"printers": printers})
}

// Run listens on addr and serves until Shutdown
func (s *Server) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("api server listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown disconnects clients and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
