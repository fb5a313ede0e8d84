package services

import (
	"testing"
	"time"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

func TestCanonicalStatus(t *testing.T) {
	cases := map[string]string{
		"Backlog":         domain.StatusBacklog,
		"To Do":           domain.StatusBacklog,
		"Refinement":      domain.StatusRefining,
		"Ready for dev":   domain.StatusReady,
		"In Progress":     domain.StatusInProgress,
		"In Validation":   domain.StatusValidation,
		"Code Review":     domain.StatusValidation,
		"QA":              domain.StatusValidation,
		"Done":            domain.StatusDone,
		"Closed":          domain.StatusDone,
		"Resolved":        domain.StatusDone,
		"":                domain.StatusBacklog,
		"Something Weird": domain.StatusBacklog,
	}
	for raw, want := range cases {
		if got := canonicalStatus(raw); got != want {
			t.Fatalf("canonicalStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCanonicalPriority(t *testing.T) {
	cases := map[string]string{
		"Highest": "P1", "Blocker": "P1", "P1": "P1",
		"High": "P2", "Major": "P2",
		"Medium": "P3", "Low": "P3", "Trivial": "P3",
		"": "",
	}
	for raw, want := range cases {
		if got := canonicalPriority(raw); got != want {
			t.Fatalf("canonicalPriority(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestAdvance_FiresOncePerSuccessTimestamp(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seen, ok := advance(time.Time{}, t0)
	if !ok || !seen.Equal(t0) {
		t.Fatalf("first success must advance: ok=%v seen=%v", ok, seen)
	}
	// Same timestamp again: no second trigger.
	if _, ok := advance(seen, t0); ok {
		t.Fatal("same success timestamp must not trigger twice")
	}
	// Older timestamp never rolls back.
	if next, ok := advance(seen, t0.Add(-time.Hour)); ok || !next.Equal(seen) {
		t.Fatalf("stale timestamp must be ignored: ok=%v next=%v", ok, next)
	}
	// A newer one advances again.
	t1 := t0.Add(30 * time.Minute)
	if next, ok := advance(seen, t1); !ok || !next.Equal(t1) {
		t.Fatalf("newer success must advance: ok=%v next=%v", ok, next)
	}
	// No success recorded yet: nothing fires.
	if _, ok := advance(time.Time{}, time.Time{}); ok {
		t.Fatal("zero last-success must not trigger")
	}
}

func TestValidateTicket(t *testing.T) {
	good := domain.Ticket{TicketID: "CMP-1", Title: "x", Status: domain.StatusReady, Priority: "P1"}
	if err := validateTicket(good); err != nil {
		t.Fatalf("valid ticket rejected: %v", err)
	}
	bad := []domain.Ticket{
		{Title: "x", Status: domain.StatusReady},
		{TicketID: "a", Status: domain.StatusReady},
		{TicketID: "a", Title: "x", Status: "Shipped"},
		{TicketID: "a", Title: "x", Status: domain.StatusReady, Priority: "P0"},
		{TicketID: "a", Title: "x", Status: domain.StatusReady, WorkHours: -1},
	}
	for i, tk := range bad {
		if err := validateTicket(tk); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	got := escapeMarkdownV2("12.5 (est)")
	if got != "12\\.5 \\(est\\)" {
		t.Fatalf("escape = %q", got)
	}
}
