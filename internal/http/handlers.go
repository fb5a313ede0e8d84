/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dzeax/mi-app-monet-sub000/internal/config"
	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
	"github.com/dzeax/mi-app-monet-sub000/internal/reporting"
	"github.com/dzeax/mi-app-monet-sub000/internal/services"
)

// Service is the slice of the application layer the HTTP surface needs.
type Service interface {
	Report(ctx context.Context, q reporting.Query) (reporting.Report, error)
	Facets(ctx context.Context, f reporting.FilterSpec) (reporting.Facets, error)
	ListTickets(ctx context.Context) ([]domain.Ticket, error)
	CreateTicket(ctx context.Context, caps domain.AuthCapabilities, t domain.Ticket) (domain.Ticket, error)
	UpdateTicket(ctx context.Context, caps domain.AuthCapabilities, t domain.Ticket) (domain.Ticket, error)
	DeleteTicket(ctx context.Context, caps domain.AuthCapabilities, id int64) error
	SetNeedsEffort(ctx context.Context, caps domain.AuthCapabilities, id int64, state string) error
	ListCatalog(ctx context.Context, kind string) ([]domain.CatalogItem, error)
	AddCatalogItem(ctx context.Context, caps domain.AuthCapabilities, kind, label string) (domain.CatalogItem, error)
	ListDirectory(ctx context.Context) ([]domain.PersonEntry, error)
	ListRates(ctx context.Context, years []int) ([]domain.OwnerRate, error)
	ImportCSV(ctx context.Context, caps domain.AuthCapabilities, r io.Reader) (services.ImportReport, error)
	RunSync(ctx context.Context) error
	GetLastRun(ctx context.Context) (*domain.SyncRun, error)
}

type Handlers struct {
	cfg config.Config
	log zerolog.Logger
	svc Service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc Service) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc}
}

// capsFrom derives capabilities from the X-Role header set by the auth proxy.
// Admin implies editor.
func capsFrom(c *gin.Context) domain.AuthCapabilities {
	switch strings.ToLower(strings.TrimSpace(c.GetHeader("X-Role"))) {
	case "admin":
		return domain.AuthCapabilities{IsAdmin: true, IsEditor: true}
	case "editor":
		return domain.AuthCapabilities{IsEditor: true}
	default:
		return domain.AuthCapabilities{}
	}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) Report(c *gin.Context) {
	var q reporting.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rep, err := h.svc.Report(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handlers) Facets(c *gin.Context) {
	var f reporting.FilterSpec
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	facets, err := h.svc.Facets(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, facets)
}

func (h *Handlers) ListTickets(c *gin.Context) {
	tickets, err := h.svc.ListTickets(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

func (h *Handlers) CreateTicket(c *gin.Context) {
	var t domain.Ticket
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.svc.CreateTicket(c.Request.Context(), capsFrom(c), t)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handlers) UpdateTicket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var t domain.Ticket
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t.ID = id
	updated, err := h.svc.UpdateTicket(c.Request.Context(), capsFrom(c), t)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handlers) DeleteTicket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteTicket(c.Request.Context(), capsFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) ClearNeedsEffort(c *gin.Context) {
	h.setNeedsEffort(c, domain.NeedsEffortCleared)
}

func (h *Handlers) DismissNeedsEffort(c *gin.Context) {
	h.setNeedsEffort(c, domain.NeedsEffortDismissed)
}

func (h *Handlers) setNeedsEffort(c *gin.Context, state string) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.SetNeedsEffort(c.Request.Context(), capsFrom(c), id, state); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *Handlers) ListCatalog(c *gin.Context) {
	items, err := h.svc.ListCatalog(c.Request.Context(), c.Param("kind"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handlers) AddCatalogItem(c *gin.Context) {
	var body struct {
		Label string `json:"label"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := h.svc.AddCatalogItem(c.Request.Context(), capsFrom(c), c.Param("kind"), body.Label)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handlers) Directory(c *gin.Context) {
	entries, err := h.svc.ListDirectory(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handlers) Rates(c *gin.Context) {
	years, err := parseYears(c.Query("years"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rates, err := h.svc.ListRates(c.Request.Context(), years)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rates)
}

func (h *Handlers) ImportCSV(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()
	report, err := h.svc.ImportCSV(c.Request.Context(), capsFrom(c), file)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handlers) ImportTemplate(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="tickets_template.csv"`)
	c.Data(http.StatusOK, "text/csv", []byte(strings.Join(services.CSVHeader, ",")+"\n"))
}

// RunSync kicks a sync in the background and returns immediately, same as the
// scheduled run would.
func (h *Handlers) RunSync(c *gin.Context) {
	if !capsFrom(c).IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	go func() {
		if err := h.svc.RunSync(context.Background()); err != nil {
			h.log.Error().Err(err).Msg("manual sync failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (h *Handlers) LastRun(c *gin.Context) {
	run, err := h.svc.GetLastRun(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if run == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket id"})
		return 0, false
	}
	return id, true
}

func parseYears(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var years []int
	for _, part := range strings.Split(raw, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.New("years must be a comma-separated list of integers")
		}
		years = append(years, y)
	}
	return years, nil
}
