/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package reporting

import (
	"math"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

// PrepRatio is the derived prep-hours fraction applied when a contribution
// has no explicit prep value.
const PrepRatio = 0.35

// Contributions expands a ticket into its normalized effort entries. Tickets
// without explicit contributions synthesize one from the legacy owner/hours
// fields, so the result is never empty and every element carries a finite
// non-negative workHours and a canonical workstream.
func (e *Engine) Contributions(t domain.Ticket) []domain.Contribution {
	if len(t.Contributions) == 0 {
		return []domain.Contribution{{
			Owner:      t.Owner,
			EffortDate: t.AssignedDate,
			WorkHours:  sanitizeHours(t.WorkHours),
			PrepHours:  sanitizePrep(t.PrepHours),
			Workstream: e.ws.Default(),
		}}
	}
	out := make([]domain.Contribution, 0, len(t.Contributions))
	for _, c := range t.Contributions {
		c.WorkHours = sanitizeHours(c.WorkHours)
		c.PrepHours = sanitizePrep(c.PrepHours)
		c.Workstream = e.ws.Normalize(c.Workstream)
		out = append(out, c)
	}
	return out
}

// EffectivePrep applies the derived-prep rule: explicit prep wins, otherwise
// workHours x PrepRatio.
func EffectivePrep(c domain.Contribution) float64 {
	if c.PrepHours != nil {
		return *c.PrepHours
	}
	return c.WorkHours * PrepRatio
}

func sanitizeHours(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func sanitizePrep(v *float64) *float64 {
	if v == nil {
		return nil
	}
	h := sanitizeHours(*v)
	return &h
}
