package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/adam0307a/yurts-laundry-tracker/internal/auth"
	"github.com/adam0307a/yurts-laundry-tracker/internal/engine"
	"github.com/adam0307a/yurts-laundry-tracker/internal/mw"
	"github.com/adam0307a/yurts-laundry-tracker/internal/store"
	"github.com/adam0307a/yurts-laundry-tracker/internal/view"
)

// RouterOptions bundles the tunables the router needs from config.
type RouterOptions struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
	TokenSecret     []byte
}

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, eng *engine.Engine, v *view.View, webpushOptions *webpush.Options, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, eng, v, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst)
	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)
	authRequired := auth.Middleware(opts.TokenSecret)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// GET /api/blocks
		api.GET("/blocks", caching, handler.GetBlocks)

		// GET /api/blocks/{block_id}/machines
		api.GET("/blocks/:block_id/machines", handler.GetBlockMachines)

		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		protected := api.Group("")
		protected.Use(authRequired)
		{
			protected.POST("/machines/:machine_id/start", handler.StartMachine)
			protected.POST("/machines/:machine_id/end", handler.EndMachine)
			protected.POST("/machines/:machine_id/toggle-existence", handler.ToggleMachineExistence)

			protected.GET("/subscriptions", handler.GetSubscriptions)
			protected.PUT("/subscriptions", handler.PutSubscription)
			protected.DELETE("/subscriptions", handler.DeleteSubscription)
		}
	}

	return r
}
