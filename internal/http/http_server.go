package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lashpay/lash-relayer/internal/config"
	"github.com/lashpay/lash-relayer/internal/payment"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

type HTTPServer struct {
	svc       *payment.Service
	jwtSecret []byte
	port      string
	debug     bool
}

func NewHTTPServer(svc *payment.Service, cfg *config.Config) *HTTPServer {
	var secret []byte
	if cfg.APIJwtSecret != "" {
		secret = []byte(cfg.APIJwtSecret)
	}
	return &HTTPServer{
		svc:       svc,
		jwtSecret: secret,
		port:      cfg.HTTPPort,
		debug:     cfg.LogLevel >= log.DebugLevel,
	}
}

func (hs *HTTPServer) Router() *gin.Engine {
	if !hs.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if hs.debug {
		r.Use(gin.Logger())
	}

	r.GET("/api/v1/health", hs.handleHealth)

	api := r.Group("/api/v1")
	if hs.jwtSecret != nil {
		api.Use(jwtAuth(hs.jwtSecret))
	} else {
		log.Warnf("API_JWT_SECRET is empty, payment endpoints are unauthenticated")
	}
	api.POST("/send", hs.handleSend)
	api.POST("/send/batch", hs.handleBatchSend)
	api.POST("/balance", hs.handleBalance)
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (hs *HTTPServer) Start(ctx context.Context) {
	srv := &http.Server{
		Addr:              ":" + hs.port,
		Handler:           hs.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("HTTP server shutdown: %v", err)
		}
	}()

	log.Infof("HTTP server is running on port %s", hs.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start HTTP server: %v", err)
	}
	log.Info("HTTP server stopped")
}

func (hs *HTTPServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "network": hs.svc.Params().Name})
}
