package seats

import (
	"mintix/internal/shared/config"
	"mintix/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// Router handles seat lock routes
type Router struct {
	controller *Controller
	config     *config.Config
}

func NewRouter(controller *Controller, cfg *config.Config) *Router {
	return &Router{
		controller: controller,
		config:     cfg,
	}
}

// SetupRoutes registers seat lock routes; all of them require a wallet.
func (r *Router) SetupRoutes(rg *gin.RouterGroup) {
	seats := rg.Group("/seats")
	seats.Use(middleware.JWTAuthWithConfig(r.config))
	{
		seats.POST("/lock", r.controller.Lock)
		seats.POST("/unlock", r.controller.Unlock)
		seats.POST("/renew", r.controller.Renew)
	}
}
