package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

func TestTicketMetrics_PrepDefault(t *testing.T) {
	e := testEngine(nil)
	tk := domain.Ticket{Contributions: []domain.Contribution{{Owner: "x", WorkHours: 10}}}
	m := e.TicketMetrics(tk, nil)
	assert.Equal(t, 10.0, m.TotalWork)
	assert.Equal(t, 3.5, m.TotalPrep)
	assert.Equal(t, 13.5, m.TotalHours)
	assert.InDelta(t, 13.5/7, m.TotalDays, 1e-9)
}

func TestTicketMetrics_BudgetAdditivity(t *testing.T) {
	e := testEngine([]domain.OwnerRate{
		{Year: 2026, PersonID: "p-ana", Owner: "Ana García", DailyRate: 100, Currency: "EUR"},
	})
	tk := domain.Ticket{
		AssignedDate: date(2026, 1, 10),
		Contributions: []domain.Contribution{
			{Owner: "Ana García", WorkHours: 7, EffortDate: date(2026, 2, 1)},
			{Owner: "nobody with a rate", WorkHours: 0, PrepHours: fptr(0), EffortDate: date(2026, 2, 1)},
		},
	}
	m := e.TicketMetrics(tk, nil)
	require.NotNil(t, m.Budget)
	// ((7 + 7*0.35) / 7) * 100 and the rateless contribution adds exactly 0.
	assert.InDelta(t, 135.0, *m.Budget, 1e-9)
	assert.Equal(t, "EUR", m.Currency)
}

func TestTicketMetrics_BudgetUnavailableWhenNoRateResolves(t *testing.T) {
	e := testEngine(nil)
	tk := domain.Ticket{Contributions: []domain.Contribution{{Owner: "x", WorkHours: 5}}}
	m := e.TicketMetrics(tk, nil)
	assert.Nil(t, m.Budget, "no resolvable rate must render as unavailable, not zero")
}

func TestTicketMetrics_WorkstreamFilterScopesRowTotals(t *testing.T) {
	e := testEngine(nil)
	tk := domain.Ticket{Contributions: []domain.Contribution{
		{Owner: "a", WorkHours: 4, PrepHours: fptr(1), Workstream: "Data"},
		{Owner: "b", WorkHours: 6, PrepHours: fptr(2), Workstream: "Lifecycle"},
	}}
	m := e.TicketMetrics(tk, map[string]bool{"Lifecycle": true})
	assert.Equal(t, 6.0, m.TotalWork)
	assert.Equal(t, 2.0, m.TotalPrep)
}

func TestDaysToDue_Sign(t *testing.T) {
	e := testEngine(nil)
	yesterday := testNow.AddDate(0, 0, -1)
	today := testNow
	if d := e.DaysToDue(&yesterday); d == nil || *d != -1 {
		t.Fatalf("due yesterday: got %v, want -1", d)
	}
	if d := e.DaysToDue(&today); d == nil || *d != 0 {
		t.Fatalf("due today: got %v, want 0", d)
	}
	if d := e.DaysToDue(nil); d != nil {
		t.Fatalf("no due date: got %v, want nil", d)
	}
}

func TestSeverity_Boundaries(t *testing.T) {
	cases := []struct {
		status string
		days   *int
		want   string
	}{
		{domain.StatusReady, iptr(-15), SeverityWarn},
		{domain.StatusReady, iptr(-16), SeverityCritical},
		{domain.StatusReady, iptr(1), SeverityNeutral},
		{domain.StatusReady, iptr(0), SeverityWarn},
		{domain.StatusReady, nil, SeverityNeutral},
		{domain.StatusDone, iptr(-40), SeverityDone},
		{domain.StatusDone, nil, SeverityDone},
	}
	for _, c := range cases {
		if got := Severity(c.status, c.days); got != c.want {
			t.Fatalf("Severity(%s, %v) = %s, want %s", c.status, c.days, got, c.want)
		}
	}
}

func iptr(v int) *int { return &v }
