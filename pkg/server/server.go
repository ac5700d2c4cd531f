// Package server exposes the demo lifecycle over HTTP: health probes, the
// GPU pod inventory, namespace status and teardown, and Prometheus metrics.
package server

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erwangranger/RHAI3-demo/pkg/gpu"
	"github.com/erwangranger/RHAI3-demo/pkg/namespace"
	"github.com/erwangranger/RHAI3-demo/pkg/stats"
	"github.com/erwangranger/RHAI3-demo/pkg/waiter"
)

// DefaultPort is the port serve mode listens on unless configured otherwise.
const DefaultPort = "8080"

// Config holds the serve mode settings.
type Config struct {
	// Port the HTTP server listens on.
	Port string
	// Namespace is the demo namespace handlers default to.
	Namespace string
}

// NamespaceClient is the namespace surface the handlers need. It is the
// waiter's resource view plus status reporting; *namespace.Manager satisfies it.
type NamespaceClient interface {
	waiter.ResourceClient
	Status(ctx context.Context, name string) (*namespace.Status, error)
}

// GPULister scans the cluster for pods requesting GPUs.
type GPULister interface {
	ListGPUPods(ctx context.Context, namespace string) (*gpu.Inventory, error)
}

// ClusterPinger reports whether the cluster API answers.
type ClusterPinger interface {
	Ping(ctx context.Context) error
}

// Server wires the handlers to their cluster-facing dependencies.
type Server struct {
	config     *Config
	namespaces NamespaceClient
	gpus       GPULister
	pinger     ClusterPinger
	recorder   *stats.MetricsRecorder
}

// New creates a server from its dependencies. recorder may be nil to disable
// request and lifecycle metrics.
func New(config *Config, namespaces NamespaceClient, gpus GPULister, pinger ClusterPinger, recorder *stats.MetricsRecorder) *Server {
	if config.Port == "" {
		config.Port = DefaultPort
	}
	return &Server{
		config:     config,
		namespaces: namespaces,
		gpus:       gpus,
		pinger:     pinger,
		recorder:   recorder,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.metricsMiddleware())

	router.GET("/healthz", s.HealthzHandler)
	router.GET("/readyz", s.ReadyzHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.GET("/gpu-pods", s.GPUPodsHandler)
	api.GET("/namespaces/:name", s.NamespaceStatusHandler)
	api.POST("/namespaces/:name/teardown", s.TeardownHandler)

	return router
}

// Start runs the HTTP server until it fails.
func (s *Server) Start() error {
	log.Printf("🚀 Starting demo control server on :%s", s.config.Port)
	log.Printf("   Namespace: %s", s.config.Namespace)

	return s.Router().Run(":" + s.config.Port)
}

// metricsMiddleware records every request against the route template, so
// /api/v1/namespaces/:name stays one series regardless of the actual name.
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if s.recorder == nil {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.recorder.RecordRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
