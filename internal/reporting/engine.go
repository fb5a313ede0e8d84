/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package reporting

import (
	"time"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

// Engine bundles the resolvers and the rate index so the aggregation and
// filter functions share one view of the catalogs. Engines are cheap to
// rebuild; callers construct a fresh one whenever the directory, alias table
// or rates change.
type Engine struct {
	dir   *Directory
	ws    *WorkstreamTable
	rates RateIndex
	now   func() time.Time
}

func NewEngine(dir *Directory, ws *WorkstreamTable, rates RateIndex) *Engine {
	if dir == nil {
		dir = NewDirectory(nil)
	}
	if ws == nil {
		ws = NewWorkstreamTable("Data", DefaultWorkstreamAliases())
	}
	return &Engine{dir: dir, ws: ws, rates: rates, now: time.Now}
}

// WithNow pins the engine's clock. Used by tests and by the digest renderer
// to keep daysToDue stable across one report.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) Directory() *Directory         { return e.dir }
func (e *Engine) Workstreams() *WorkstreamTable { return e.ws }

// ResolvePerson is the identity-resolution entry point used by filtering and
// facet tallies.
func (e *Engine) ResolvePerson(label, personID string) string {
	return e.dir.Resolve(label, personID)
}

// DefaultEffortDate implements the effort-date default used when a
// contribution is created without one: tickets assigned in 2026 or later
// default to today, older tickets default to their assigned date.
// TODO: confirm with the product owner whether the 2026 cutover can be
// retired once all pre-2026 tickets are closed.
func (e *Engine) DefaultEffortDate(t domain.Ticket) time.Time {
	now := e.now()
	if t.AssignedDate == nil {
		return now
	}
	if t.AssignedDate.Year() >= 2026 {
		return now
	}
	return *t.AssignedDate
}
