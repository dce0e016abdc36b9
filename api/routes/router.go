// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"mintix/internal/auth"
	"mintix/internal/blockchain"
	"mintix/internal/concerts"
	"mintix/internal/locking"
	"mintix/internal/notifications"
	"mintix/internal/realtime"
	"mintix/internal/seats"
	"mintix/internal/shared/config"
	"mintix/internal/shared/database"
	"mintix/internal/shared/middleware"
	"mintix/internal/shared/utils/response"
	"mintix/internal/tickets"
	"mintix/pkg/cache"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config      *config.Config
	db          *database.DB
	coordinator *locking.Coordinator
	hub         *realtime.Hub
	producer    notifications.Producer

	cacheService   cache.Service
	concertService concerts.Service
	ticketRepo     tickets.Repository
}

// NewRouter creates a new router instance. The coordinator, hub, and producer
// are built by main so their lifecycles (sweeper, Kafka connection) outlive
// route setup.
func NewRouter(cfg *config.Config, db *database.DB, coordinator *locking.Coordinator, hub *realtime.Hub, producer notifications.Producer) *Router {
	return &Router{
		config:      cfg,
		db:          db,
		coordinator: coordinator,
		hub:         hub,
		producer:    producer,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.cacheService = cache.NewService(r.db.GetRedis())

	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	// Realtime seat map feed
	engine.GET("/ws/concerts/:concertId", r.hub.ServeWS)

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupAuthRoutes(api)
		r.setupConcertRoutes(api)
		r.setupSeatRoutes(api)
		r.setupTicketRoutes(api)
		r.setupSystemRoutes(api)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "mintix-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "mintix-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})
}

// setupAuthRoutes configures authentication routes
func (r *Router) setupAuthRoutes(rg *gin.RouterGroup) {
	authRepo := auth.NewRepository(r.db.GetPostgreSQL(), r.db.GetRedis())
	authService := auth.NewService(authRepo, r.config)
	authController := auth.NewController(authService)
	authRouter := auth.NewRouter(authController, r.config)

	authRouter.SetupRoutes(rg)
}

// setupConcertRoutes configures concert management routes
func (r *Router) setupConcertRoutes(rg *gin.RouterGroup) {
	concertRepo := concerts.NewRepository(r.db.GetPostgreSQL())
	r.concertService = concerts.NewService(concertRepo, r.cacheService)
	concertController := concerts.NewController(r.concertService)
	concertRouter := concerts.NewRouter(concertController, r.config)

	concertRouter.SetupRoutes(rg)
}

// setupSeatRoutes configures seat lock routes
func (r *Router) setupSeatRoutes(rg *gin.RouterGroup) {
	seatController := seats.NewController(r.coordinator)
	seatRouter := seats.NewRouter(seatController, r.config)

	seatRouter.SetupRoutes(rg)
}

// setupTicketRoutes configures ticket and marketplace routes
func (r *Router) setupTicketRoutes(rg *gin.RouterGroup) {
	r.ticketRepo = tickets.NewRepository(r.db.GetPostgreSQL())
	verifier := blockchain.NewClient(r.config.Solana)
	ticketService := tickets.NewService(
		r.ticketRepo,
		r.concertService,
		r.coordinator,
		verifier,
		r.producer,
		r.cacheService,
		r.config.Solana.TreasuryWallet,
	)
	ticketController := tickets.NewController(ticketService)
	ticketRouter := tickets.NewRouter(ticketController, r.config)

	ticketRouter.SetupRoutes(rg)
}

// setupSystemRoutes configures lock introspection and maintenance routes
func (r *Router) setupSystemRoutes(rg *gin.RouterGroup) {
	system := rg.Group("/system")

	// Public status: lock counts plus realtime connections.
	system.GET("/status", func(c *gin.Context) {
		stats, err := r.coordinator.Stats(c.Request.Context())
		if err != nil {
			response.RespondJSON(c, "error", http.StatusServiceUnavailable, "Lock store unavailable", nil, nil)
			return
		}

		response.RespondJSON(c, "success", http.StatusOK, "System status", gin.H{
			"locks":     stats,
			"realtime":  r.hub.Stats(),
			"timestamp": time.Now(),
		}, nil)
	})

	admin := system.Group("")
	admin.Use(middleware.JWTAuthWithConfig(r.config), middleware.RequireAdmin())
	{
		admin.GET("/locks/:concertId", func(c *gin.Context) {
			records, err := r.coordinator.LocksForConcert(c.Request.Context(), c.Param("concertId"))
			if err != nil {
				response.RespondJSON(c, "error", http.StatusServiceUnavailable, "Lock store unavailable", nil, nil)
				return
			}
			response.RespondJSON(c, "success", http.StatusOK, "Active locks", gin.H{
				"locks": records,
				"count": len(records),
			}, nil)
		})

		admin.POST("/cleanup", func(c *gin.Context) {
			reclaimed, err := r.coordinator.CleanupExpired(c.Request.Context())
			if err != nil {
				response.RespondJSON(c, "error", http.StatusServiceUnavailable, "Lock store unavailable", nil, nil)
				return
			}
			response.RespondJSON(c, "success", http.StatusOK, "Cleanup complete", gin.H{
				"reclaimed": reclaimed,
			}, nil)
		})
	}
}
