/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package reporting

import (
	"sort"
	"strings"
	"time"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

// Filter field names. Matches accepts one of these as the excluded field when
// computing facet option counts.
const (
	FieldStatus      = "status"
	FieldOwner       = "owner"
	FieldAssignee    = "assignee"
	FieldPriority    = "priority"
	FieldType        = "type"
	FieldWorkstream  = "workstream"
	FieldSearch      = "search"
	FieldAssigned    = "assigned"
	FieldDue         = "due"
	FieldDaysBucket  = "daysBucket"
	FieldNeedsEffort = "needsEffort"
	FieldHasWork     = "hasWork"
)

// Days-to-due buckets.
const (
	BucketOverdue = "overdue"
	BucketToday   = "today"
	BucketNext7   = "next7"
	BucketNext30  = "next30"
	BucketNoDue   = "no-due"
)

// FilterSpec is the multi-field filter evaluated against each ticket. List
// fields are OR-within-field; all non-empty fields AND together. Owner and
// assignee entries are canonical person keys; date bounds are inclusive
// YYYY-MM-DD strings.
type FilterSpec struct {
	Status       []string `json:"status,omitempty"`
	Owner        []string `json:"owner,omitempty"`
	Assignee     []string `json:"assignee,omitempty"`
	Priority     []string `json:"priority,omitempty"`
	Type         []string `json:"type,omitempty"`
	Workstream   []string `json:"workstream,omitempty"`
	Search       string   `json:"search,omitempty"`
	AssignedFrom string   `json:"assignedFrom,omitempty"`
	AssignedTo   string   `json:"assignedTo,omitempty"`
	DueFrom      string   `json:"dueFrom,omitempty"`
	DueTo        string   `json:"dueTo,omitempty"`
	DaysBucket   string   `json:"daysBucket,omitempty"`
	NeedsEffort  bool     `json:"needsEffort,omitempty"`
	HasWork      bool     `json:"hasWork,omitempty"`
}

// WorkstreamSet returns the canonical workstream facet as a set, empty when
// the facet is unconstrained.
func (e *Engine) WorkstreamSet(f FilterSpec) map[string]bool {
	if len(f.Workstream) == 0 {
		return nil
	}
	set := make(map[string]bool, len(f.Workstream))
	for _, w := range f.Workstream {
		set[e.ws.Normalize(w)] = true
	}
	return set
}

// Matches evaluates a ticket against the filter. exclude names one field to
// skip, which is how facet dropdowns compute "what else would be selectable
// if this facet were unconstrained"; pass "" to evaluate every field.
func (e *Engine) Matches(t domain.Ticket, f FilterSpec, exclude string) bool {
	wsFilter := e.WorkstreamSet(f)
	if exclude == FieldWorkstream {
		wsFilter = nil
	}

	if exclude != FieldStatus && len(f.Status) > 0 && !contains(f.Status, t.Status) {
		return false
	}
	if exclude != FieldPriority && len(f.Priority) > 0 && !contains(f.Priority, t.Priority) {
		return false
	}
	if exclude != FieldType && len(f.Type) > 0 && !contains(f.Type, t.Type) {
		return false
	}
	if exclude != FieldOwner && len(f.Owner) > 0 {
		matched := false
		for _, c := range e.Contributions(t) {
			if len(wsFilter) > 0 && !wsFilter[c.Workstream] {
				continue
			}
			if contains(f.Owner, e.dir.Resolve(c.Owner, c.PersonID)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if exclude != FieldAssignee && len(f.Assignee) > 0 {
		if !contains(f.Assignee, e.dir.Resolve(t.JiraAssignee, "")) {
			return false
		}
	}
	if exclude != FieldSearch && strings.TrimSpace(f.Search) != "" {
		needle := strings.ToLower(strings.TrimSpace(f.Search))
		if !strings.Contains(strings.ToLower(t.TicketID), needle) &&
			!strings.Contains(strings.ToLower(t.Title), needle) {
			return false
		}
	}
	if exclude != FieldAssigned && !dateInRange(t.AssignedDate, f.AssignedFrom, f.AssignedTo) {
		return false
	}
	if exclude != FieldDue && !dateInRange(t.DueDate, f.DueFrom, f.DueTo) {
		return false
	}
	if exclude != FieldDaysBucket && f.DaysBucket != "" {
		if !inBucket(e.DaysToDue(t.DueDate), f.DaysBucket) {
			return false
		}
	}
	if exclude != FieldWorkstream && len(f.Workstream) > 0 {
		set := e.WorkstreamSet(f)
		matched := false
		for _, c := range e.Contributions(t) {
			if set[c.Workstream] {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if exclude != FieldNeedsEffort && f.NeedsEffort {
		open := t.NeedsEffort != nil && t.NeedsEffort.State == domain.NeedsEffortOpen
		terminal := t.Status == domain.StatusValidation || t.Status == domain.StatusDone
		if !open || !terminal {
			return false
		}
	}
	if exclude != FieldHasWork && f.HasWork {
		sum := 0.0
		for _, c := range e.Contributions(t) {
			if len(wsFilter) > 0 && !wsFilter[c.Workstream] {
				continue
			}
			sum += c.WorkHours
		}
		if sum <= 0 {
			return false
		}
	}
	return true
}

// dateInRange applies inclusive YYYY-MM-DD bounds; a ticket lacking the date
// fails any non-empty bound.
func dateInRange(d *time.Time, from, to string) bool {
	if from == "" && to == "" {
		return true
	}
	if d == nil {
		return false
	}
	iso := d.Format("2006-01-02")
	if from != "" && iso < from {
		return false
	}
	if to != "" && iso > to {
		return false
	}
	return true
}

// inBucket checks a days-to-due value against one bucket. next7 and next30
// overlap on purpose (both are "due within N days" windows).
func inBucket(daysToDue *int, bucket string) bool {
	if bucket == BucketNoDue {
		return daysToDue == nil
	}
	if daysToDue == nil {
		return false
	}
	d := *daysToDue
	switch bucket {
	case BucketOverdue:
		return d < 0
	case BucketToday:
		return d == 0
	case BucketNext7:
		return d > 0 && d <= 7
	case BucketNext30:
		return d > 0 && d <= 30
	default:
		return false
	}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// FacetOption is one selectable value in a multi-select dropdown, with the
// number of tickets that would match it given every other active filter.
type FacetOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Facets struct {
	Status     []FacetOption `json:"status"`
	Owner      []FacetOption `json:"owner"`
	Assignee   []FacetOption `json:"assignee"`
	Priority   []FacetOption `json:"priority"`
	Type       []FacetOption `json:"type"`
	Workstream []FacetOption `json:"workstream"`
}

// Facets tallies the option list for each facet field by re-running the
// filter with that one field excluded. A ticket counts once per distinct
// value even when several contributions share an owner or workstream.
func (e *Engine) Facets(tickets []domain.Ticket, f FilterSpec) Facets {
	return Facets{
		Status:     rankFixed(e.tally(tickets, f, FieldStatus), domain.Statuses),
		Owner:      rankByLabel(e.tally(tickets, f, FieldOwner)),
		Assignee:   rankByLabel(e.tally(tickets, f, FieldAssignee)),
		Priority:   rankFixed(e.tally(tickets, f, FieldPriority), domain.Priorities),
		Type:       rankByLabel(e.tally(tickets, f, FieldType)),
		Workstream: rankByLabel(e.tally(tickets, f, FieldWorkstream)),
	}
}

func (e *Engine) tally(tickets []domain.Ticket, f FilterSpec, field string) map[string]FacetOption {
	wsFilter := e.WorkstreamSet(f)
	out := map[string]FacetOption{}
	bump := func(value, label string) {
		if value == "" {
			return
		}
		opt, ok := out[value]
		if !ok {
			opt = FacetOption{Value: value, Label: label}
		}
		opt.Count++
		out[value] = opt
	}
	for _, t := range tickets {
		if !e.Matches(t, f, field) {
			continue
		}
		switch field {
		case FieldStatus:
			bump(t.Status, t.Status)
		case FieldPriority:
			bump(t.Priority, t.Priority)
		case FieldType:
			bump(t.Type, t.Type)
		case FieldAssignee:
			key := e.dir.Resolve(t.JiraAssignee, "")
			bump(key, e.labelFor(key, t.JiraAssignee))
		case FieldOwner:
			seen := map[string]bool{}
			for _, c := range e.Contributions(t) {
				if len(wsFilter) > 0 && !wsFilter[c.Workstream] {
					continue
				}
				key := e.dir.Resolve(c.Owner, c.PersonID)
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true
				bump(key, e.labelFor(key, c.Owner))
			}
		case FieldWorkstream:
			seen := map[string]bool{}
			for _, c := range e.Contributions(t) {
				if seen[c.Workstream] {
					continue
				}
				seen[c.Workstream] = true
				bump(c.Workstream, c.Workstream)
			}
		}
	}
	return out
}

func (e *Engine) labelFor(key, fallback string) string {
	if name := e.dir.DisplayName(key); name != key {
		return name
	}
	if strings.TrimSpace(fallback) != "" {
		return strings.TrimSpace(fallback)
	}
	return key
}

func rankByLabel(opts map[string]FacetOption) []FacetOption {
	out := make([]FacetOption, 0, len(opts))
	for _, o := range opts {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !strings.EqualFold(out[i].Label, out[j].Label) {
			return strings.ToLower(out[i].Label) < strings.ToLower(out[j].Label)
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// rankFixed orders options by a fixed enumeration, appending unknown values
// alphabetically at the end.
func rankFixed(opts map[string]FacetOption, order []string) []FacetOption {
	out := make([]FacetOption, 0, len(opts))
	for _, v := range order {
		if o, ok := opts[v]; ok {
			out = append(out, o)
			delete(opts, v)
		}
	}
	rest := rankByLabel(opts)
	return append(out, rest...)
}
