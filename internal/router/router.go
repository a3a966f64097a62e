package router

import (
	"log/slog"
	"time"

	"mzunguko/config"
	"mzunguko/internal/handler"
	"mzunguko/internal/middleware"
	"mzunguko/internal/repository"
	"mzunguko/internal/service"
	"mzunguko/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, logger *slog.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Skip gin.Logger() to reduce log noise; use gin.Default() if you need request logging
	r.Use(middleware.Metrics())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	store := repository.NewStore(db)
	hub := ws.NewHub()

	// Services
	notifSvc := service.NewNotificationService(store, hub, logger)
	circleSvc := service.NewCircleService(store, notifSvc)
	contributionSvc := service.NewContributionService(store, notifSvc)
	payoutSvc := service.NewPayoutService(store, notifSvc)
	overrideSvc := service.NewOverrideService(store, notifSvc)

	// Handlers
	circleHandler := handler.NewCircleHandler(circleSvc, store)
	contributionHandler := handler.NewContributionHandler(contributionSvc)
	payoutHandler := handler.NewPayoutHandler(payoutSvc)
	adminHandler := handler.NewAdminHandler(overrideSvc)
	notificationHandler := handler.NewNotificationHandler(notifSvc)

	authMw := middleware.AuthRequired(&cfg.JWT)
	writeLimiter := middleware.NewInMemoryRateLimiter(30, 60*time.Second)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/circles/:id", ws.UpgradeCircleWS(&cfg.JWT, store, hub))

	api := r.Group("/api/v1")
	api.Use(authMw)
	{
		circles := api.Group("/circles")
		{
			circles.POST("", middleware.RateLimitByUser(writeLimiter), circleHandler.Create)
			circles.GET("", circleHandler.ListMine)
			circles.GET("/:id", circleHandler.Get)
			circles.GET("/:id/grid", circleHandler.Grid)
			circles.GET("/:id/ledger", circleHandler.Ledger)
			circles.GET("/:id/rounds/:round/members/:userId/status", circleHandler.MemberStatus)

			circles.POST("/:id/join", circleHandler.Join)
			circles.POST("/:id/leave", circleHandler.Leave)
			circles.POST("/:id/members/:userId/approve", circleHandler.Approve)
			circles.POST("/:id/members/:userId/reject", circleHandler.Reject)
			circles.POST("/:id/activate", circleHandler.Activate)
			circles.POST("/:id/cancel", circleHandler.Cancel)
			circles.POST("/:id/transfer-admin", adminHandler.TransferAdmin)
			circles.POST("/:id/reassign-order", adminHandler.ReassignOrder)

			circles.POST("/:id/contributions", middleware.RateLimitByUser(writeLimiter), contributionHandler.MarkPaid)
			circles.POST("/:id/contributions/:userId/confirm", contributionHandler.Confirm)
			circles.POST("/:id/ledger/:seq/void", contributionHandler.Void)
			circles.POST("/:id/payouts", middleware.RateLimitByUser(writeLimiter), payoutHandler.Issue)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationHandler.ListMine)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AdminRequired())
		{
			admin.POST("/circles/:id/freeze", adminHandler.Freeze)
			admin.POST("/circles/:id/unfreeze", adminHandler.Unfreeze)
			admin.POST("/circles/:id/ledger/:seq/void", adminHandler.VoidEntry)
			admin.POST("/circles/:id/rebuild", adminHandler.Rebuild)
			admin.POST("/users/:userId/ban", adminHandler.BanUser)
			admin.POST("/users/:userId/unban", adminHandler.UnbanUser)
			admin.GET("/ledger", adminHandler.History)
		}
	}

	return r
}
