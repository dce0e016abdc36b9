package tickets

import (
	"mintix/internal/shared/config"
	"mintix/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// Router handles ticket and marketplace routes
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

// SetupRoutes registers ticket and marketplace routes
func (r *Router) SetupRoutes(rg *gin.RouterGroup) {
	tickets := rg.Group("/tickets")
	{
		// Public routes
		tickets.GET("/concerts/:concertId/minted-seats", r.controller.MintedSeats)
		tickets.GET("/:id/verify", r.controller.Verify)
		tickets.GET("/:id", r.controller.Get)

		// Wallet routes
		protected := tickets.Group("")
		protected.Use(middleware.JWTAuthWithConfig(r.config))
		{
			protected.POST("/mint", r.controller.Mint)
			protected.GET("/mine", r.controller.MyTickets)
			protected.POST("/:id/list", r.controller.List)
			protected.POST("/:id/unlist", r.controller.Unlist)
			protected.POST("/:id/buy", r.controller.Buy)
		}
	}

	market := rg.Group("/market")
	{
		market.GET("/listings", r.controller.Listings)
		market.GET("/stats", r.controller.Stats)
	}
}
