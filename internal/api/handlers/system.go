package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// CheckFunc probes one dependency for readiness.
type CheckFunc func(ctx context.Context) error

type SystemHandler struct {
	checks map[string]CheckFunc
}

func NewSystemHandler(checks map[string]CheckFunc) *SystemHandler {
	return &SystemHandler{checks: checks}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.checks))
		healthy = true
		g       errgroup.Group
	)
	for name, check := range h.checks {
		g.Go(func() error {
			status := "ok"
			if err := check(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			results[name] = status
			if status != "ok" {
				healthy = false
			}
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": results,
	})
}
