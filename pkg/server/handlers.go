package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erwangranger/RHAI3-demo/pkg/waiter"
)

// HealthzHandler answers liveness probes.
func (s *Server) HealthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReadyzHandler answers readiness probes by pinging the cluster API.
func (s *Server) ReadyzHandler(c *gin.Context) {
	if err := s.pinger.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// GPUPodsHandler returns the GPU pod inventory as JSON. The optional
// ?namespace= query narrows the scan; the default is all namespaces.
func (s *Server) GPUPodsHandler(c *gin.Context) {
	ctx := c.Request.Context()

	inventory, err := s.gpus.ListGPUPods(ctx, c.Query("namespace"))
	if err != nil {
		log.Printf("❌ GPU inventory scan failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"message": err.Error(),
				"type":    "inventory_failed",
			},
		})
		return
	}

	if s.recorder != nil {
		s.recorder.UpdateGPUInventory(len(inventory.Pods), inventory.TotalGPUs)
	}
	c.JSON(http.StatusOK, inventory)
}

// NamespaceStatusHandler reports existence and phase for one namespace.
func (s *Server) NamespaceStatusHandler(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")

	status, err := s.namespaces.Status(ctx, name)
	if err != nil {
		log.Printf("❌ Namespace status for %q failed: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"message": err.Error(),
				"type":    "status_failed",
			},
		})
		return
	}

	if s.recorder != nil {
		s.recorder.SetNamespacePresent(name, status.Exists)
	}
	c.JSON(http.StatusOK, status)
}

// TeardownRequest carries optional overrides for the teardown wait loop.
type TeardownRequest struct {
	MaxWaitSeconds      int `json:"max_wait_seconds"`
	PollIntervalSeconds int `json:"poll_interval_seconds"`
}

// TeardownHandler deletes the named namespace and waits for it to disappear,
// reporting the terminal outcome as JSON. A missing namespace is a completed
// teardown with nothing to do.
func (s *Server) TeardownHandler(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")

	var req TeardownRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"message": err.Error(),
					"type":    "invalid_request",
				},
			})
			return
		}
	}

	config := waiter.Config{Kind: "namespace"}
	if req.MaxWaitSeconds > 0 {
		config.MaxWait = time.Duration(req.MaxWaitSeconds) * time.Second
	}
	if req.PollIntervalSeconds > 0 {
		config.PollInterval = time.Duration(req.PollIntervalSeconds) * time.Second
	}

	w := waiter.New(s.namespaces, config)

	if err := w.RequestDeletion(ctx, name); err != nil {
		if errors.Is(err, waiter.ErrNotFound) {
			s.recordTeardown(name, "nothing_to_delete", 0, false)
			c.JSON(http.StatusOK, gin.H{
				"outcome": "nothing_to_delete",
				"message": fmt.Sprintf("namespace %q does not exist, nothing to delete", name),
			})
			return
		}

		s.recordTeardown(name, "request_failed", 0, true)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{
				"message": err.Error(),
				"type":    "deletion_request_failed",
			},
		})
		return
	}

	result, err := w.AwaitAbsence(ctx, name)
	if err != nil {
		s.recordTeardown(name, "check_failed", 0, true)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{
				"message": err.Error(),
				"type":    "check_failed",
			},
		})
		return
	}

	body := gin.H{
		"outcome":         result.Outcome.String(),
		"elapsed_seconds": result.ElapsedSeconds(),
		"checks":          result.Checks,
	}

	switch result.Outcome {
	case waiter.OutcomeDeleted:
		s.recordTeardown(name, result.Outcome.String(), result.Elapsed, false)
		c.JSON(http.StatusOK, body)
	case waiter.OutcomeTimedOut:
		s.recordTeardown(name, result.Outcome.String(), result.Elapsed, true)
		c.JSON(http.StatusGatewayTimeout, body)
	default:
		s.recordTeardown(name, result.Outcome.String(), result.Elapsed, true)
		c.JSON(http.StatusInternalServerError, body)
	}
}

// recordTeardown updates the metrics for one teardown attempt. stillPresent
// tracks whether the namespace is believed to remain after the attempt.
func (s *Server) recordTeardown(name, outcome string, waited time.Duration, stillPresent bool) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordTeardown("namespace", outcome, waited)
	s.recorder.SetNamespacePresent(name, stillPresent)
}
