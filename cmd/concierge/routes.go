package main

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"clinic-concierge/internal/audit"
	"clinic-concierge/internal/calls"
	"clinic-concierge/internal/crm"
	"clinic-concierge/internal/telephony"
	"clinic-concierge/pkg/logger"
	"clinic-concierge/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// healthChecker is the probe both upstream clients expose. Telephony pings
// its SIP listing, the CRM its company endpoint.
type healthChecker interface {
	Health(ctx context.Context) error
}

type routeDeps struct {
	db        *sql.DB
	rdb       *redis.Client
	processor *calls.Processor
	webhook   telephony.WebhookHandler
	authMW    gin.HandlerFunc
	store     calls.Store
	audit     *audit.Service
	syncer    *crm.Syncer
	telephony healthChecker
	crm       healthChecker
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := d.rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhook. The provider both GETs the endpoint (ownership echo)
	// and POSTs call events to it.
	r.GET("/webhooks/zadarma", d.webhook.Handle)
	r.POST("/webhooks/zadarma", d.webhook.Handle)

	// ops API group, bearer ops token required
	v1 := r.Group("/v1")
	v1.Use(d.authMW)
	{
		admin := v1.Group("/admin")
		{
			admin.POST("/sync", func(c *gin.Context) {
				n, err := d.syncer.Sync(c.Request.Context())
				if err != nil {
					logger.FromGin(c).Error("manual sync failed", "err", err)
					c.JSON(502, gin.H{"error": "sync failed"})
					return
				}
				_ = d.audit.LogAdminAction(c.Request.Context(), c.GetString("operator"), "manual crm sync")
				c.JSON(200, gin.H{"written": n})
			})

			admin.GET("/calls/recent", func(c *gin.Context) {
				maxAge := 24 * time.Hour
				if raw := c.Query("hours"); raw != "" {
					if h, err := strconv.Atoi(raw); err == nil && h > 0 && h <= 168 {
						maxAge = time.Duration(h) * time.Hour
					}
				}
				recs, err := d.store.ListRecent(c.Request.Context(), maxAge)
				if err != nil {
					logger.FromGin(c).Error("recent calls lookup failed", "err", err)
					c.JSON(500, gin.H{"error": "lookup failed"})
					return
				}
				c.JSON(200, gin.H{"calls": recs})
			})

			// Upstream provider probes. Kept off /healthz so a flaky
			// provider does not trip the process liveness check.
			admin.GET("/health", func(c *gin.Context) {
				ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
				defer cancel()

				status := gin.H{"telephony": "ok", "crm": "ok"}
				code := 200
				if err := d.telephony.Health(ctx); err != nil {
					logger.FromGin(c).Error("telephony health check failed", "err", err)
					status["telephony"] = err.Error()
					code = 502
				}
				if err := d.crm.Health(ctx); err != nil {
					logger.FromGin(c).Error("crm health check failed", "err", err)
					status["crm"] = err.Error()
					code = 502
				}
				c.JSON(code, status)
			})

			admin.GET("/audit/recent", func(c *gin.Context) {
				limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
				evs, err := d.audit.Recent(c.Request.Context(), limit)
				if err != nil {
					logger.FromGin(c).Error("audit lookup failed", "err", err)
					c.JSON(500, gin.H{"error": "lookup failed"})
					return
				}
				c.JSON(200, gin.H{"events": evs})
			})
		}
	}
}
