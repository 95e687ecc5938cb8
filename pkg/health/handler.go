package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gantryio/gantry/pkg/interfaces"
)

// AppInfo describes the running application in the health report.
type AppInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// Report is the health endpoint response body.
type Report struct {
	App    AppInfo         `json:"app"`
	Checks map[string]bool `json:"checks"`
}

// Handler serves the readiness report. All checks ready yields 200,
// anything else 503. Failure details are logged, never returned.
func Handler(app AppInfo, log interfaces.Logger, checks ...Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := Report{App: app, Checks: make(map[string]bool, len(checks))}
		ready := true

		for _, check := range checks {
			err := check.Ready(c.Request.Context())
			report.Checks[check.Name()] = err == nil
			if err != nil {
				ready = false
				log.Warn("health check failed",
					interfaces.String("check", check.Name()),
					interfaces.Error(err),
				)
			}
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}
