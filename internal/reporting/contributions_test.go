package reporting

import (
	"math"
	"testing"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

func TestContributions_LegacyTicketSynthesizesOne(t *testing.T) {
	e := testEngine(nil)
	tk := domain.Ticket{Owner: "Ana García", WorkHours: 10, AssignedDate: date(2025, 6, 1)}
	got := e.Contributions(tk)
	if len(got) != 1 {
		t.Fatalf("expected 1 synthesized contribution, got %d", len(got))
	}
	c := got[0]
	if c.Owner != "Ana García" || c.WorkHours != 10 {
		t.Fatalf("legacy fields not carried over: %+v", c)
	}
	if c.Workstream != "Data" {
		t.Fatalf("synthesized workstream = %q, want default Data", c.Workstream)
	}
	if c.PrepHours != nil {
		t.Fatalf("legacy nil prep must stay nil until aggregation, got %v", *c.PrepHours)
	}
}

func TestContributions_TotalOverHostileInput(t *testing.T) {
	e := testEngine(nil)
	tickets := []domain.Ticket{
		{},
		{WorkHours: -3},
		{WorkHours: math.NaN()},
		{Contributions: []domain.Contribution{{Owner: "x", WorkHours: math.Inf(1), Workstream: "lifecyle"}}},
		{Contributions: []domain.Contribution{{WorkHours: 2, PrepHours: fptr(-1)}, {WorkHours: 0}}},
	}
	for i, tk := range tickets {
		got := e.Contributions(tk)
		if len(got) == 0 {
			t.Fatalf("ticket %d: expansion must be non-empty", i)
		}
		for _, c := range got {
			if math.IsNaN(c.WorkHours) || math.IsInf(c.WorkHours, 0) || c.WorkHours < 0 {
				t.Fatalf("ticket %d: workHours not finite non-negative: %v", i, c.WorkHours)
			}
			if c.Workstream == "" {
				t.Fatalf("ticket %d: workstream must resolve", i)
			}
			if prep := EffectivePrep(c); math.IsNaN(prep) || prep < 0 {
				t.Fatalf("ticket %d: effective prep invalid: %v", i, prep)
			}
		}
	}
}

func TestContributions_WorkstreamAliasesNormalized(t *testing.T) {
	e := testEngine(nil)
	tk := domain.Ticket{Contributions: []domain.Contribution{
		{Owner: "a", WorkHours: 1, Workstream: "lifecyle"},
		{Owner: "b", WorkHours: 1, Workstream: "  "},
		{Owner: "c", WorkHours: 1, Workstream: "Retention"},
	}}
	got := e.Contributions(tk)
	want := []string{"Lifecycle", "Data", "Retention"}
	for i, w := range want {
		if got[i].Workstream != w {
			t.Fatalf("contribution %d workstream = %q, want %q", i, got[i].Workstream, w)
		}
	}
}

func TestDefaultEffortDate_YearCutover(t *testing.T) {
	e := testEngine(nil)
	old := domain.Ticket{AssignedDate: date(2025, 2, 3)}
	if got := e.DefaultEffortDate(old); !got.Equal(*old.AssignedDate) {
		t.Fatalf("pre-2026 ticket should default to assigned date, got %v", got)
	}
	recent := domain.Ticket{AssignedDate: date(2026, 1, 15)}
	if got := e.DefaultEffortDate(recent); !got.Equal(testNow) {
		t.Fatalf("2026+ ticket should default to today, got %v", got)
	}
	if got := e.DefaultEffortDate(domain.Ticket{}); !got.Equal(testNow) {
		t.Fatalf("no assigned date should default to today, got %v", got)
	}
}
