/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
	"github.com/dzeax/mi-app-monet-sub000/internal/obs"
)

// CSVHeader is the required import header, also served as the template.
var CSVHeader = []string{
	"ticket_id", "title", "status", "priority", "type", "owner",
	"assigned_date", "due_date", "work_hours", "prep_hours", "workstream",
}

type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type ImportReport struct {
	BatchID  string     `json:"batchId"`
	Imported int        `json:"imported"`
	Rejected int        `json:"rejected"`
	Errors   []RowError `json:"errors,omitempty"`
}

// ImportCSV validates and upserts tickets from a CSV stream. Valid rows land
// even when others fail; the report lists every rejected line.
func (s *Service) ImportCSV(ctx context.Context, caps domain.AuthCapabilities, r io.Reader) (ImportReport, error) {
	if !caps.IsEditor {
		return ImportReport{}, ErrForbidden
	}
	rep := ImportReport{BatchID: uuid.NewString()}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return rep, fmt.Errorf("%w: read csv header: %v", ErrInvalid, err)
	}
	if err := checkHeader(header); err != nil {
		return rep, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	eng, err := s.engine(ctx, nil)
	if err != nil {
		return rep, err
	}

	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			rep.Rejected++
			rep.Errors = append(rep.Errors, RowError{Line: line, Message: err.Error()})
			obs.CSVRowsImported.WithLabelValues("rejected").Inc()
			continue
		}
		t, rerr := parseCSVRow(record)
		if rerr == nil {
			if ws := t.Contributions; len(ws) > 0 {
				ws[0].Workstream = eng.Workstreams().Normalize(ws[0].Workstream)
			}
			rerr = s.importRow(ctx, t)
		}
		if rerr != nil {
			rep.Rejected++
			rep.Errors = append(rep.Errors, RowError{Line: line, Message: rerr.Error()})
			obs.CSVRowsImported.WithLabelValues("rejected").Inc()
			continue
		}
		rep.Imported++
		obs.CSVRowsImported.WithLabelValues("imported").Inc()
	}
	s.log.Info().Str("batch", rep.BatchID).Int("imported", rep.Imported).Int("rejected", rep.Rejected).Msg("csv import")
	return rep, nil
}

func (s *Service) importRow(ctx context.Context, t domain.Ticket) error {
	cs := t.Contributions
	t.Contributions = nil
	id, err := s.repo.UpsertTicket(ctx, t)
	if err != nil {
		return err
	}
	if len(cs) > 0 {
		return s.repo.ReplaceContributions(ctx, id, cs)
	}
	return nil
}

func checkHeader(header []string) error {
	if len(header) != len(CSVHeader) {
		return fmt.Errorf("csv header must have %d columns, got %d", len(CSVHeader), len(header))
	}
	for i, want := range CSVHeader {
		if strings.TrimSpace(strings.ToLower(header[i])) != want {
			return fmt.Errorf("csv column %d must be %q, got %q", i+1, want, header[i])
		}
	}
	return nil
}

func parseCSVRow(rec []string) (domain.Ticket, error) {
	get := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	t := domain.Ticket{
		TicketID: get(0),
		Title:    get(1),
		Status:   get(2),
		Priority: get(3),
		Type:     get(4),
		Owner:    get(5),
	}
	if t.TicketID == "" {
		return t, errors.New("ticket_id is required")
	}
	if t.Title == "" {
		return t, errors.New("title is required")
	}
	if !contains(domain.Statuses, t.Status) {
		return t, fmt.Errorf("invalid status %q", t.Status)
	}
	if t.Priority != "" && !contains(domain.Priorities, t.Priority) {
		return t, fmt.Errorf("invalid priority %q", t.Priority)
	}
	var err error
	if t.AssignedDate, err = parseISODate(get(6)); err != nil {
		return t, fmt.Errorf("assigned_date: %v", err)
	}
	if t.DueDate, err = parseISODate(get(7)); err != nil {
		return t, fmt.Errorf("due_date: %v", err)
	}
	if t.WorkHours, err = parseHours(get(8)); err != nil {
		return t, fmt.Errorf("work_hours: %v", err)
	}
	if prep := get(9); prep != "" {
		h, err := parseHours(prep)
		if err != nil {
			return t, fmt.Errorf("prep_hours: %v", err)
		}
		t.PrepHours = &h
	}
	// An explicit workstream turns the legacy columns into one contribution.
	if ws := get(10); ws != "" {
		t.Contributions = []domain.Contribution{{
			Owner:      t.Owner,
			EffortDate: t.AssignedDate,
			WorkHours:  t.WorkHours,
			PrepHours:  t.PrepHours,
			Workstream: ws,
		}}
	}
	return t, nil
}

func parseISODate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return &t, nil
}

func parseHours(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("expected a number, got %q", s)
	}
	if v < 0 {
		return 0, errors.New("must be >= 0")
	}
	return v, nil
}
