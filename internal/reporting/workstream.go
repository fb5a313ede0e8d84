/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package reporting

import "strings"

// WorkstreamTable normalizes raw workstream labels, mapping legacy aliases
// and known typos to canonical names. Unknown labels pass through unchanged
// so new workstreams are never silently dropped.
type WorkstreamTable struct {
	def     string
	aliases map[string]string
}

// DefaultWorkstreamAliases covers the historical spellings seen in the feed.
func DefaultWorkstreamAliases() map[string]string {
	return map[string]string{
		"lifecyle":   "Lifecycle",
		"life cycle": "Lifecycle",
		"lifecycles": "Lifecycle",
		"datos":      "Data",
		"data ops":   "Data",
		"deliv":      "Deliverability",
		"delivery":   "Deliverability",
	}
}

func NewWorkstreamTable(def string, aliases map[string]string) *WorkstreamTable {
	t := &WorkstreamTable{def: def, aliases: map[string]string{}}
	for raw, canonical := range aliases {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" || canonical == "" {
			continue
		}
		t.aliases[key] = canonical
	}
	return t
}

// Default returns the configured fallback workstream.
func (t *WorkstreamTable) Default() string { return t.def }

func (t *WorkstreamTable) Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return t.def
	}
	if canonical, ok := t.aliases[strings.ToLower(raw)]; ok {
		return canonical
	}
	return raw
}
