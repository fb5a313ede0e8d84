/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

// PageSize is the fixed report page length.
const PageSize = 20

// Sort keys.
const (
	SortAssignedDate = "assignedDate"
	SortDueDate      = "dueDate"
	SortDaysToDue    = "daysToDue"
	SortPriority     = "priority"
	SortOwner        = "owner"
	SortWorkHours    = "workHours"
	SortPrepHours    = "prepHours"
	SortTotalHours   = "totalHours"
	SortTotalDays    = "totalDays"
	SortBudget       = "budget"
)

// Row is one filtered ticket with its derived metrics.
type Row struct {
	Ticket  domain.Ticket `json:"ticket"`
	Metrics Metrics       `json:"metrics"`
}

// SortState tracks the active sort column and direction.
type SortState struct {
	Key string `json:"key"`
	Asc bool   `json:"asc"`
}

// Toggle applies a header click: the same key flips direction, a new key
// resets to ascending.
func (s SortState) Toggle(key string) SortState {
	if s.Key == key {
		return SortState{Key: key, Asc: !s.Asc}
	}
	return SortState{Key: key, Asc: true}
}

// SortRows orders rows in place by key/direction. Missing dates and unknown
// priorities sort last regardless of direction; the sort is stable so equal
// rows keep their feed order.
func SortRows(rows []Row, key string, asc bool) {
	less := lessFunc(key)
	if less == nil {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		ra, rb := less(a, b), less(b, a)
		if !ra && !rb {
			return false
		}
		if asc {
			return ra
		}
		return rb
	})
}

func lessFunc(key string) func(a, b Row) bool {
	switch key {
	case SortAssignedDate:
		return func(a, b Row) bool { return timeLess(a.Ticket.AssignedDate, b.Ticket.AssignedDate) }
	case SortDueDate:
		return func(a, b Row) bool { return timeLess(a.Ticket.DueDate, b.Ticket.DueDate) }
	case SortDaysToDue:
		return func(a, b Row) bool { return intPtrLess(a.Metrics.DaysToDue, b.Metrics.DaysToDue) }
	case SortPriority:
		return func(a, b Row) bool { return priorityRank(a.Ticket.Priority) < priorityRank(b.Ticket.Priority) }
	case SortOwner:
		return func(a, b Row) bool {
			return strings.ToLower(a.Ticket.Owner) < strings.ToLower(b.Ticket.Owner)
		}
	case SortWorkHours:
		return func(a, b Row) bool { return a.Metrics.TotalWork < b.Metrics.TotalWork }
	case SortPrepHours:
		return func(a, b Row) bool { return a.Metrics.TotalPrep < b.Metrics.TotalPrep }
	case SortTotalHours:
		return func(a, b Row) bool { return a.Metrics.TotalHours < b.Metrics.TotalHours }
	case SortTotalDays:
		return func(a, b Row) bool { return a.Metrics.TotalDays < b.Metrics.TotalDays }
	case SortBudget:
		return func(a, b Row) bool { return floatPtrLess(a.Metrics.Budget, b.Metrics.Budget) }
	default:
		return nil
	}
}

// Nil dates/metrics are treated as +inf so they land at the end of an
// ascending sort.
func timeLess(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.Before(*b)
}

func intPtrLess(a, b *int) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return *a < *b
}

func floatPtrLess(a, b *float64) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return *a < *b
}

func priorityRank(p string) int {
	for i, v := range domain.Priorities {
		if v == p {
			return i
		}
	}
	return len(domain.Priorities)
}

// Group buckets.
const (
	GroupNone  = "none"
	GroupOwner = "owner"
	GroupType  = "type"
)

type Group struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Rows  []Row  `json:"rows"`
}

// GroupRows buckets rows by the raw owner or type field, preserving row
// order within and across groups (groups appear in first-seen order). Empty
// grouping values fall back to "Unassigned".
func GroupRows(rows []Row, by string) []Group {
	if by == "" || by == GroupNone {
		return []Group{{Key: GroupNone, Label: groupLabel("All tickets", len(rows)), Rows: rows}}
	}
	index := map[string]int{}
	var groups []Group
	for _, r := range rows {
		key := ""
		switch by {
		case GroupOwner:
			key = strings.TrimSpace(r.Ticket.Owner)
		case GroupType:
			key = strings.TrimSpace(r.Ticket.Type)
		}
		if key == "" {
			key = "Unassigned"
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Rows = append(groups[i].Rows, r)
	}
	for i := range groups {
		groups[i].Label = groupLabel(groups[i].Key, len(groups[i].Rows))
	}
	return groups
}

func groupLabel(name string, n int) string {
	if n == 1 {
		return fmt.Sprintf("%s (1 ticket)", name)
	}
	return fmt.Sprintf("%s (%d tickets)", name, n)
}

// Page describes one slice of the sorted result set. Index is clamped into
// the valid range whenever the filtered count shrinks under the requested
// page.
type Page struct {
	Index int `json:"index"`
	Size  int `json:"size"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func Paginate(total, requested int) Page {
	p := Page{Size: PageSize, Total: total}
	p.Pages = (total + PageSize - 1) / PageSize
	if p.Pages == 0 {
		p.Pages = 1
	}
	p.Index = requested
	if p.Index < 0 {
		p.Index = 0
	}
	if p.Index > p.Pages-1 {
		p.Index = p.Pages - 1
	}
	return p
}

// PageSlice returns the rows for a page computed by Paginate.
func PageSlice(rows []Row, p Page) []Row {
	start := p.Index * p.Size
	if start >= len(rows) {
		return nil
	}
	end := start + p.Size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// Totals are the aggregate metrics across the whole filtered set (not just
// the visible page). They equal the sum of the row metrics by construction.
type Totals struct {
	Count      int     `json:"count"`
	TotalWork  float64 `json:"totalWork"`
	TotalPrep  float64 `json:"totalPrep"`
	TotalHours float64 `json:"totalHours"`
	TotalDays  float64 `json:"totalDays"`
	Budget     float64 `json:"budget"`
}

func SumTotals(rows []Row) Totals {
	t := Totals{Count: len(rows)}
	for _, r := range rows {
		t.TotalWork += r.Metrics.TotalWork
		t.TotalPrep += r.Metrics.TotalPrep
		t.TotalHours += r.Metrics.TotalHours
		t.TotalDays += r.Metrics.TotalDays
		if r.Metrics.Budget != nil {
			t.Budget += *r.Metrics.Budget
		}
	}
	return t
}

// Query is one report request: filter, sort, grouping and page index.
type Query struct {
	Filter  FilterSpec `json:"filter"`
	Sort    SortState  `json:"sort"`
	GroupBy string     `json:"groupBy,omitempty"`
	Page    int        `json:"page"`
}

// Report is the assembled response for a query.
type Report struct {
	Groups []Group `json:"groups"`
	Totals Totals  `json:"totals"`
	Page   Page    `json:"page"`
}

// Report filters, annotates, sorts, paginates and groups the ticket
// collection. Totals cover the full filtered set; the page slice and the
// groups cover only the visible page.
func (e *Engine) Report(tickets []domain.Ticket, q Query) Report {
	wsFilter := e.WorkstreamSet(q.Filter)
	rows := make([]Row, 0, len(tickets))
	for _, t := range tickets {
		if !e.Matches(t, q.Filter, "") {
			continue
		}
		rows = append(rows, Row{Ticket: t, Metrics: e.TicketMetrics(t, wsFilter)})
	}
	if q.Sort.Key != "" {
		SortRows(rows, q.Sort.Key, q.Sort.Asc)
	}
	totals := SumTotals(rows)
	page := Paginate(len(rows), q.Page)
	visible := PageSlice(rows, page)
	return Report{
		Groups: GroupRows(visible, q.GroupBy),
		Totals: totals,
		Page:   page,
	}
}
