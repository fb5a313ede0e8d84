/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package reporting holds the derivation core behind the ticket-reporting
// view: identity and workstream resolution, contribution expansion, rate
// lookup, metric aggregation, faceted filtering and table state. Everything
// here is pure computation over in-memory slices; persistence and transport
// live elsewhere.
package reporting

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

// foldName canonicalizes a free-text person label: trim, lowercase, strip
// diacritics, collapse inner whitespace. "José  Núñez" and "jose nunez" fold
// to the same key.
func foldName(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(s), " ")
}

// Directory resolves free-text owner/assignee labels to canonical person
// keys via a precomputed alias map.
type Directory struct {
	byAlias map[string]string
	display map[string]string
}

func NewDirectory(entries []domain.PersonEntry) *Directory {
	d := &Directory{byAlias: map[string]string{}, display: map[string]string{}}
	for _, e := range entries {
		if e.PersonID == "" {
			continue
		}
		if _, ok := d.display[e.PersonID]; !ok {
			d.display[e.PersonID] = e.DisplayName
		}
		// The canonical key maps to itself so Resolve is idempotent even for
		// mixed-case person ids.
		if key := foldName(e.PersonID); key != "" {
			d.byAlias[key] = e.PersonID
		}
		for _, alias := range append([]string{e.DisplayName}, e.Aliases...) {
			key := foldName(alias)
			if key == "" {
				continue
			}
			if _, ok := d.byAlias[key]; !ok {
				d.byAlias[key] = e.PersonID
			}
		}
	}
	return d
}

// Resolve maps a label to its canonical person key. An explicit personID is
// authoritative. Unmapped labels resolve to their folded form so identical
// spellings still group together; resolving an already-canonical key is a
// no-op, which keeps Resolve idempotent.
func (d *Directory) Resolve(label, personID string) string {
	if personID != "" {
		return personID
	}
	key := foldName(label)
	if key == "" {
		return ""
	}
	if id, ok := d.byAlias[key]; ok {
		return id
	}
	return key
}

// DisplayName returns the directory display name for a canonical key, or the
// key itself when the directory has no entry.
func (d *Directory) DisplayName(key string) string {
	if name, ok := d.display[key]; ok && name != "" {
		return name
	}
	return key
}
