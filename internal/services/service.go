/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/dzeax/mi-app-monet-sub000/internal/config"
	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
	"github.com/dzeax/mi-app-monet-sub000/internal/obs"
	"github.com/dzeax/mi-app-monet-sub000/internal/reporting"
)

type JiraClient interface {
	Search(ctx context.Context, jql string, startAt, max int) (map[string]any, error)
	Issue(ctx context.Context, key string) (map[string]any, error)
}

type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMarkdownV2(ctx context.Context, chatID int64, text string) error
}

// Store is the persistence surface the service depends on, satisfied by
// *repo.Repository.
type Store interface {
	ListTickets(ctx context.Context) ([]domain.Ticket, error)
	GetTicket(ctx context.Context, id int64) (domain.Ticket, error)
	UpsertTicket(ctx context.Context, t domain.Ticket) (int64, error)
	UpsertSyncedTicket(ctx context.Context, t domain.Ticket) (int64, error)
	SaveTicket(ctx context.Context, t domain.Ticket) error
	DeleteTicket(ctx context.Context, id int64) error
	ReplaceContributions(ctx context.Context, ticketID int64, cs []domain.Contribution) error
	SetNeedsEffort(ctx context.Context, ticketID int64, state string) error
	FlagNeedsEffort(ctx context.Context, ticketID int64) (bool, error)
	ListDirectory(ctx context.Context) ([]domain.PersonEntry, error)
	ListRates(ctx context.Context, years []int) ([]domain.OwnerRate, error)
	ListCatalog(ctx context.Context, kind string) ([]domain.CatalogItem, error)
	AddCatalogItem(ctx context.Context, kind, label string) (domain.CatalogItem, error)
	StartSyncRun(ctx context.Context) (int64, error)
	FinishSyncRun(ctx context.Context, id int64, scanned, flagged int, success bool, errStr string) error
	GetLastRun(ctx context.Context) (*domain.SyncRun, error)
	LastSuccess(ctx context.Context) (time.Time, error)
}

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid input")
)

type Service struct {
	cfg  config.Config
	log  zerolog.Logger
	repo Store
	jira JiraClient
	tg   Notifier
}

func New(cfg config.Config, log zerolog.Logger, st Store, jira JiraClient, tg Notifier) *Service {
	return &Service{cfg: cfg, log: log, repo: st, jira: jira, tg: tg}
}

// engine assembles a reporting engine from the current catalogs. Rebuilt per
// request: the collections are small and this keeps the core free of cache
// invalidation.
func (s *Service) engine(ctx context.Context, years []int) (*reporting.Engine, error) {
	entries, err := s.repo.ListDirectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}
	rates, err := s.repo.ListRates(ctx, years)
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}
	dir := reporting.NewDirectory(entries)
	aliases := reporting.DefaultWorkstreamAliases()
	for raw, canonical := range s.cfg.WorkstreamAliases {
		aliases[raw] = canonical
	}
	ws := reporting.NewWorkstreamTable(s.cfg.DefaultWorkstream, aliases)
	return reporting.NewEngine(dir, ws, reporting.BuildRateIndex(rates, dir)), nil
}

// Report runs one filtered/sorted/paged report over the ticket mirror.
func (s *Service) Report(ctx context.Context, q reporting.Query) (reporting.Report, error) {
	start := time.Now()
	obs.ReportQueries.Inc()
	defer func() { obs.ReportDuration.Observe(time.Since(start).Seconds()) }()

	eng, err := s.engine(ctx, nil)
	if err != nil {
		return reporting.Report{}, err
	}
	tickets, err := s.repo.ListTickets(ctx)
	if err != nil {
		return reporting.Report{}, fmt.Errorf("load tickets: %w", err)
	}
	return eng.Report(tickets, q), nil
}

// Facets computes the option lists/counts for every filter dropdown.
func (s *Service) Facets(ctx context.Context, f reporting.FilterSpec) (reporting.Facets, error) {
	eng, err := s.engine(ctx, nil)
	if err != nil {
		return reporting.Facets{}, err
	}
	tickets, err := s.repo.ListTickets(ctx)
	if err != nil {
		return reporting.Facets{}, fmt.Errorf("load tickets: %w", err)
	}
	return eng.Facets(tickets, f), nil
}

func (s *Service) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	return s.repo.ListTickets(ctx)
}

func (s *Service) GetLastRun(ctx context.Context) (*domain.SyncRun, error) {
	return s.repo.GetLastRun(ctx)
}

func (s *Service) ListDirectory(ctx context.Context) ([]domain.PersonEntry, error) {
	return s.repo.ListDirectory(ctx)
}

func (s *Service) ListRates(ctx context.Context, years []int) ([]domain.OwnerRate, error) {
	return s.repo.ListRates(ctx, years)
}

func (s *Service) ListCatalog(ctx context.Context, kind string) ([]domain.CatalogItem, error) {
	if !validCatalog(kind) {
		return nil, fmt.Errorf("%w: unknown catalog %q", ErrNotFound, kind)
	}
	return s.repo.ListCatalog(ctx, kind)
}

func (s *Service) AddCatalogItem(ctx context.Context, caps domain.AuthCapabilities, kind, label string) (domain.CatalogItem, error) {
	if !caps.IsEditor {
		return domain.CatalogItem{}, ErrForbidden
	}
	if !validCatalog(kind) {
		return domain.CatalogItem{}, fmt.Errorf("%w: unknown catalog %q", ErrNotFound, kind)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return domain.CatalogItem{}, fmt.Errorf("%w: label is required", ErrInvalid)
	}
	return s.repo.AddCatalogItem(ctx, kind, label)
}

func validCatalog(kind string) bool {
	return kind == domain.CatalogOwners || kind == domain.CatalogTypes || kind == domain.CatalogWorkstreams
}

// CreateTicket validates and stores a dashboard-entered ticket. Contributions
// missing an effort date get the year-cutover default.
func (s *Service) CreateTicket(ctx context.Context, caps domain.AuthCapabilities, t domain.Ticket) (domain.Ticket, error) {
	if !caps.IsEditor {
		return domain.Ticket{}, ErrForbidden
	}
	if err := validateTicket(t); err != nil {
		return domain.Ticket{}, err
	}
	eng, err := s.engine(ctx, nil)
	if err != nil {
		return domain.Ticket{}, err
	}
	defaultEffortDates(eng, &t)
	id, err := s.repo.UpsertTicket(ctx, t)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	if len(t.Contributions) > 0 {
		if err := s.repo.ReplaceContributions(ctx, id, t.Contributions); err != nil {
			return domain.Ticket{}, fmt.Errorf("store contributions: %w", err)
		}
	}
	return s.repo.GetTicket(ctx, id)
}

// UpdateTicket applies a full replacement of the editable fields.
func (s *Service) UpdateTicket(ctx context.Context, caps domain.AuthCapabilities, t domain.Ticket) (domain.Ticket, error) {
	if !caps.IsEditor {
		return domain.Ticket{}, ErrForbidden
	}
	if err := validateTicket(t); err != nil {
		return domain.Ticket{}, err
	}
	eng, err := s.engine(ctx, nil)
	if err != nil {
		return domain.Ticket{}, err
	}
	defaultEffortDates(eng, &t)
	if err := s.repo.SaveTicket(ctx, t); err != nil {
		return domain.Ticket{}, mapNotFound(err, "update ticket")
	}
	if err := s.repo.ReplaceContributions(ctx, t.ID, t.Contributions); err != nil {
		return domain.Ticket{}, fmt.Errorf("store contributions: %w", err)
	}
	return s.repo.GetTicket(ctx, t.ID)
}

func (s *Service) DeleteTicket(ctx context.Context, caps domain.AuthCapabilities, id int64) error {
	if !caps.IsAdmin {
		return ErrForbidden
	}
	return mapNotFound(s.repo.DeleteTicket(ctx, id), "delete ticket")
}

// SetNeedsEffort moves the flag to cleared or dismissed. Clearing means the
// effort data was filled in, so the ticket is re-pulled from the tracker to
// show its current state alongside the new hours.
func (s *Service) SetNeedsEffort(ctx context.Context, caps domain.AuthCapabilities, id int64, state string) error {
	if !caps.IsEditor {
		return ErrForbidden
	}
	if state != domain.NeedsEffortCleared && state != domain.NeedsEffortDismissed {
		return fmt.Errorf("%w: needs-effort state %q", ErrInvalid, state)
	}
	if err := mapNotFound(s.repo.SetNeedsEffort(ctx, id, state), "needs effort"); err != nil {
		return err
	}
	if state == domain.NeedsEffortCleared {
		s.refreshFromTracker(ctx, id)
	}
	return nil
}

// refreshFromTracker re-fetches one issue and upserts the tracker-owned
// columns. Best-effort: failures are logged, never surfaced to the caller.
func (s *Service) refreshFromTracker(ctx context.Context, id int64) {
	if s.jira == nil {
		return
	}
	t, err := s.repo.GetTicket(ctx, id)
	if err != nil || t.TicketID == "" {
		return
	}
	im, err := s.jira.Issue(ctx, t.TicketID)
	if err != nil {
		s.log.Warn().Err(err).Str("ticket", t.TicketID).Msg("tracker refresh failed")
		return
	}
	fresh := s.mapIssue(im)
	if fresh.TicketID == "" {
		return
	}
	if _, err := s.repo.UpsertSyncedTicket(ctx, fresh); err != nil {
		s.log.Warn().Err(err).Str("ticket", t.TicketID).Msg("tracker refresh upsert failed")
	}
}

// defaultEffortDates fills the effort-date default on any contribution entered
// without one, so the create and update paths store identical records.
func defaultEffortDates(eng *reporting.Engine, t *domain.Ticket) {
	for i := range t.Contributions {
		if t.Contributions[i].EffortDate == nil {
			d := eng.DefaultEffortDate(*t)
			t.Contributions[i].EffortDate = &d
		}
	}
}

func validateTicket(t domain.Ticket) error {
	if strings.TrimSpace(t.TicketID) == "" {
		return fmt.Errorf("%w: ticketId is required", ErrInvalid)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if !contains(domain.Statuses, t.Status) {
		return fmt.Errorf("%w: status %q", ErrInvalid, t.Status)
	}
	if t.Priority != "" && !contains(domain.Priorities, t.Priority) {
		return fmt.Errorf("%w: priority %q", ErrInvalid, t.Priority)
	}
	if t.WorkHours < 0 {
		return fmt.Errorf("%w: workHours must be >= 0", ErrInvalid)
	}
	for i, c := range t.Contributions {
		if c.WorkHours < 0 {
			return fmt.Errorf("%w: contribution %d workHours must be >= 0", ErrInvalid, i)
		}
		if c.PrepHours != nil && *c.PrepHours < 0 {
			return fmt.Errorf("%w: contribution %d prepHours must be >= 0", ErrInvalid, i)
		}
	}
	return nil
}

func mapNotFound(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
