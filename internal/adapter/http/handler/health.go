package handler

import (
	"context"
	"net/http"
	"time"

	"p2p-exchange/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/sourcegraph/conc/iter"
)

const healthCheckTimeout = 2 * time.Second

type depStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck pings every dependency in parallel. Any failure reports degraded with 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		results := iter.Map(checkers, func(checker *ports.HealthChecker) depStatus {
			if err := (*checker).Ping(ctx); err != nil {
				return depStatus{Status: "unhealthy", Error: err.Error()}
			}
			return depStatus{Status: "healthy"}
		})

		deps := make(map[string]depStatus, len(checkers))
		allHealthy := true
		for i, checker := range checkers {
			deps[checker.Name()] = results[i]
			if results[i].Status != "healthy" {
				allHealthy = false
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
