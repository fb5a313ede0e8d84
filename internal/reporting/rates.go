/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package reporting

import (
	"time"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

// RateIndex partitions owner rates by calendar year. Within a year each rate
// is reachable under its canonical person key, its raw personId and its raw
// owner spelling; the first entry filed under a key wins.
type RateIndex map[int]map[string]domain.OwnerRate

func BuildRateIndex(entries []domain.OwnerRate, dir *Directory) RateIndex {
	if dir == nil {
		dir = NewDirectory(nil)
	}
	idx := RateIndex{}
	for _, r := range entries {
		year := idx[r.Year]
		if year == nil {
			year = map[string]domain.OwnerRate{}
			idx[r.Year] = year
		}
		keys := []string{dir.Resolve(r.Owner, r.PersonID)}
		if r.PersonID != "" {
			keys = append(keys, r.PersonID)
		}
		if r.Owner != "" {
			keys = append(keys, r.Owner)
		}
		for _, k := range keys {
			if k == "" {
				continue
			}
			if _, ok := year[k]; !ok {
				year[k] = r
			}
		}
	}
	return idx
}

// RateFor resolves the daily rate applicable to a contribution. The year
// comes from the effort date, falling back to the ticket's assigned date and
// then the current year; within the year, lookup order is canonical person
// key, raw personId, raw owner. The second return is false when nothing
// matched; callers treat budget as not computable, never as zero cost.
func (e *Engine) RateFor(c domain.Contribution, assigned *time.Time) (domain.OwnerRate, bool) {
	year := 0
	switch {
	case c.EffortDate != nil:
		year = c.EffortDate.Year()
	case assigned != nil:
		year = assigned.Year()
	default:
		year = e.now().Year()
	}
	table := e.rates[year]
	if table == nil {
		return domain.OwnerRate{}, false
	}
	for _, key := range []string{e.dir.Resolve(c.Owner, c.PersonID), c.PersonID, c.Owner} {
		if key == "" {
			continue
		}
		if r, ok := table[key]; ok {
			return r, true
		}
	}
	return domain.OwnerRate{}, false
}
