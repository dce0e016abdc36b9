package concerts

import (
	"mintix/internal/shared/config"
	"mintix/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// Router handles concert-related routes
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

// SetupRoutes registers all concert routes
func (r *Router) SetupRoutes(rg *gin.RouterGroup) {
	concerts := rg.Group("/concerts")
	{
		// Public routes
		concerts.GET("", r.controller.ListConcerts)
		concerts.GET("/:id", r.controller.GetConcert)

		// Organizer routes (any authenticated wallet)
		protected := concerts.Group("")
		protected.Use(middleware.JWTAuthWithConfig(r.config))
		{
			protected.POST("", r.controller.CreateConcert)
		}
	}

	// Admin review routes
	admin := rg.Group("/admin/concerts")
	admin.Use(middleware.JWTAuthWithConfig(r.config), middleware.RequireAdmin())
	{
		admin.GET("", r.controller.ListForAdmin)
		admin.PUT("/:id/approve", r.controller.Approve)
		admin.PUT("/:id/reject", r.controller.Reject)
		admin.PUT("/:id/request-info", r.controller.RequestInfo)
		admin.DELETE("/:id", r.controller.Delete)
	}
}
