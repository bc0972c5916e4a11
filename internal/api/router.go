package api

import (
	"log"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"container-request-board/config"
	"container-request-board/internal/mw"
	"container-request-board/internal/store"
	"container-request-board/internal/ws"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, erpClient ContainerSource, runner CleanupRunner, hub *ws.Hub, notify Notifier, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	loc, err := time.LoadLocation(cfg.Cleanup.Timezone)
	if err != nil {
		log.Printf("api: invalid timezone %q, using UTC: %v", cfg.Cleanup.Timezone, err)
		loc = time.UTC
	}
	handler := NewHandler(s, erpClient, runner, hub, notify, webpushOptions, cfg.Server.OperatorPasscode, loc)

	rateLimiter := mw.RateLimit(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/requests", handler.GetRequests)
		api.POST("/requests", handler.CreateRequest)
		api.DELETE("/requests/:serial_no", handler.DeleteRequest)

		api.GET("/history", handler.GetHistory)
		api.GET("/history/stats", caching, handler.GetHistoryStats)
		api.GET("/history/export", handler.ExportHistory)
		api.DELETE("/history/clear-all", handler.ClearHistory)

		api.POST("/cleanup/manual", handler.ManualCleanup)
		api.GET("/cleanup/status", handler.CleanupStatus)
		api.GET("/cleanup/logs", handler.CleanupLogs)

		api.GET("/parts/:part_no/containers", caching, handler.GetContainersByPart)
		api.GET("/containers/:serial_no", caching, handler.GetContainerBySerial)
		api.GET("/master-units/:master_unit/containers", caching, handler.GetContainersByMasterUnit)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	r.GET("/ws", func(c *gin.Context) {
		hub.HandleUpgrade(c.Writer, c.Request)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
