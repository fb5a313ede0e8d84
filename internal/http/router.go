/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dzeax/mi-app-monet-sub000/internal/config"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc Service) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := NewHandlers(cfg, log, svc)

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/report", h.Report)
		api.POST("/report/facets", h.Facets)

		api.GET("/tickets", h.ListTickets)
		api.POST("/tickets", h.CreateTicket)
		api.PATCH("/tickets/:id", h.UpdateTicket)
		api.DELETE("/tickets/:id", h.DeleteTicket)
		api.POST("/tickets/:id/needs-effort/clear", h.ClearNeedsEffort)
		api.POST("/tickets/:id/needs-effort/dismiss", h.DismissNeedsEffort)

		api.GET("/catalogs/:kind", h.ListCatalog)
		api.POST("/catalogs/:kind", h.AddCatalogItem)
		api.GET("/directory", h.Directory)
		api.GET("/rates", h.Rates)

		api.POST("/import/csv", h.ImportCSV)
		api.GET("/import/template", h.ImportTemplate)
	}

	r.POST("/admin/sync", h.RunSync)
	r.GET("/admin/last-run", h.LastRun)

	return r
}
