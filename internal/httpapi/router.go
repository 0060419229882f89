package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/support-desk/internal/auth"
	"github.com/suPer8Hu/support-desk/internal/common"
	"github.com/suPer8Hu/support-desk/internal/config"
	"github.com/suPer8Hu/support-desk/internal/httpapi/handlers"
	"github.com/suPer8Hu/support-desk/internal/httpapi/middleware"
)

// NewRouter wires the public probes, the websocket endpoint and the staff API.
func NewRouter(cfg *config.Config, h *handlers.Handler, ws http.Handler, log zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RequestLogger(log))

	r.GET("/ping", h.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if ws != nil {
		r.GET("/ws", gin.WrapH(ws))
	}

	// Staff API (JWT + staff role)
	staff := r.Group("/support")
	staff.Use(auth.AuthRequired(cfg.JWTSecret), auth.StaffOnly())
	staff.GET("/conversations", h.ListConversations)
	staff.GET("/conversations/:id/messages", h.ListMessages)
	staff.DELETE("/conversations/:id", h.ClearConversation)
	staff.GET("/escalations", h.ListEscalations)
	staff.POST("/escalations/:id/ack", h.AckEscalation)
	return r
}
