/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package reporting

import (
	"math"
	"time"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

// HoursPerDay is the fixed working-day length used to convert hours to days
// for budget purposes.
const HoursPerDay = 7.0

// Due severities.
const (
	SeverityDone     = "done"
	SeverityNeutral  = "neutral"
	SeverityWarn     = "warn"
	SeverityCritical = "critical"
)

// Metrics are the per-ticket derived values. Budget is nil when no kept
// contribution resolved a rate; DaysToDue is nil when the ticket has no due
// date.
type Metrics struct {
	TotalWork  float64  `json:"totalWork"`
	TotalPrep  float64  `json:"totalPrep"`
	TotalHours float64  `json:"totalHours"`
	TotalDays  float64  `json:"totalDays"`
	Budget     *float64 `json:"budget"`
	Currency   string   `json:"currency,omitempty"`
	DaysToDue  *int     `json:"daysToDue"`
	Severity   string   `json:"severity"`
}

// TicketMetrics aggregates a ticket's contributions. When wsFilter is
// non-empty only contributions whose normalized workstream is in the set are
// counted, so per-row totals track an active workstream facet.
func (e *Engine) TicketMetrics(t domain.Ticket, wsFilter map[string]bool) Metrics {
	m := Metrics{}
	budgetResolved := false
	budget := 0.0
	for _, c := range e.Contributions(t) {
		if len(wsFilter) > 0 && !wsFilter[c.Workstream] {
			continue
		}
		prep := EffectivePrep(c)
		m.TotalWork += c.WorkHours
		m.TotalPrep += prep
		if rate, ok := e.RateFor(c, t.AssignedDate); ok {
			budget += ((c.WorkHours + prep) / HoursPerDay) * rate.DailyRate
			budgetResolved = true
			if m.Currency == "" {
				m.Currency = rate.Currency
			}
		}
	}
	m.TotalHours = m.TotalWork + m.TotalPrep
	m.TotalDays = m.TotalHours / HoursPerDay
	if budgetResolved {
		m.Budget = &budget
	}
	m.DaysToDue = e.DaysToDue(t.DueDate)
	m.Severity = Severity(t.Status, m.DaysToDue)
	return m
}

// DaysToDue is the whole-day distance from today's midnight to the due
// date's midnight. Negative means overdue; nil means no due date.
func (e *Engine) DaysToDue(due *time.Time) *int {
	if due == nil {
		return nil
	}
	today := midnight(e.now())
	target := midnight(*due)
	d := int(math.Ceil(target.Sub(today).Hours() / 24))
	return &d
}

// Severity classifies due-date pressure. Done tickets are always "done";
// tickets due in the future or with no due date are "neutral"; up to 15 days
// overdue is "warn"; beyond that, "critical".
func Severity(status string, daysToDue *int) string {
	if status == domain.StatusDone {
		return SeverityDone
	}
	if daysToDue == nil || *daysToDue > 0 {
		return SeverityNeutral
	}
	if *daysToDue >= -15 {
		return SeverityWarn
	}
	return SeverityCritical
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
