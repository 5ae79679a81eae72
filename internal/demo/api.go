package demo

import (
	"net/http"
	"time"

	"github.com/ark7/a7router/pkg/web/controller"
	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
)

// APIController is the root of the demo API
type APIController struct {
	controller.Base
	version string
	started time.Time
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// Health reports liveness
func (a *APIController) Health(c *middleware.Context) error {
	return router.WriteJSON(c.Writer, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: a.version,
		Uptime:  time.Since(a.started).Round(time.Second).String(),
	})
}
