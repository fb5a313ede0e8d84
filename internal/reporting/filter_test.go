package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

func filterFixture() []domain.Ticket {
	overdue := testNow.AddDate(0, 0, -3)
	soon := testNow.AddDate(0, 0, 5)
	return []domain.Ticket{
		{
			TicketID: "CMP-1", Title: "Welcome journey revamp", Status: domain.StatusReady,
			Priority: "P1", Type: "Campaign", AssignedDate: date(2026, 2, 1), DueDate: &soon,
			JiraAssignee: "Ana García",
			Contributions: []domain.Contribution{
				{Owner: "Ana García", WorkHours: 8, Workstream: "Lifecycle", EffortDate: date(2026, 2, 2)},
			},
		},
		{
			TicketID: "CMP-2", Title: "Partner database audit", Status: domain.StatusDone,
			Priority: "P2", Type: "Database", AssignedDate: date(2026, 1, 5), DueDate: &overdue,
			JiraAssignee: "José Núñez",
			NeedsEffort:  &domain.NeedsEffort{State: domain.NeedsEffortOpen},
			Contributions: []domain.Contribution{
				{Owner: "José Núñez", WorkHours: 0, Workstream: "Data"},
			},
		},
		{
			TicketID: "CMP-3", Title: "Theme refresh", Status: domain.StatusBacklog,
			Priority: "P3", Type: "Campaign", Owner: "Chris Doe", WorkHours: 2,
		},
	}
}

func TestMatches_AndAcrossFieldsOrWithin(t *testing.T) {
	e := testEngine(nil)
	tk := filterFixture()[0] // Ready / P1

	assert.True(t, e.Matches(tk, FilterSpec{
		Status:   []string{domain.StatusReady, domain.StatusDone},
		Priority: []string{"P1"},
	}, ""))
	assert.False(t, e.Matches(tk, FilterSpec{
		Status:   []string{domain.StatusDone},
		Priority: []string{"P1"},
	}, ""))
}

func TestMatches_OwnerUsesCanonicalKeys(t *testing.T) {
	e := testEngine(nil)
	tk := filterFixture()[0]
	assert.True(t, e.Matches(tk, FilterSpec{Owner: []string{"p-ana"}}, ""))
	assert.False(t, e.Matches(tk, FilterSpec{Owner: []string{"p-jose"}}, ""))
	// Legacy ticket with no contributions matches through the synthesized one.
	legacy := filterFixture()[2]
	assert.True(t, e.Matches(legacy, FilterSpec{Owner: []string{"chris doe"}}, ""))
}

func TestMatches_DateBoundsInclusiveAndMissingDateFails(t *testing.T) {
	e := testEngine(nil)
	tk := filterFixture()[0] // assigned 2026-02-01
	assert.True(t, e.Matches(tk, FilterSpec{AssignedFrom: "2026-02-01", AssignedTo: "2026-02-01"}, ""))
	assert.False(t, e.Matches(tk, FilterSpec{AssignedFrom: "2026-02-02"}, ""))
	noDates := filterFixture()[2]
	assert.False(t, e.Matches(noDates, FilterSpec{AssignedFrom: "2000-01-01"}, ""))
	assert.False(t, e.Matches(noDates, FilterSpec{DueTo: "2099-01-01"}, ""))
}

func TestMatches_DaysBucket(t *testing.T) {
	e := testEngine(nil)
	tks := filterFixture()
	assert.True(t, e.Matches(tks[0], FilterSpec{DaysBucket: BucketNext7}, ""))
	assert.True(t, e.Matches(tks[0], FilterSpec{DaysBucket: BucketNext30}, "")) // 5 days out sits in both windows
	assert.True(t, e.Matches(tks[1], FilterSpec{DaysBucket: BucketOverdue}, ""))
	assert.True(t, e.Matches(tks[2], FilterSpec{DaysBucket: BucketNoDue}, ""))
}

func TestMatches_NeedsEffortRequiresTerminalStatus(t *testing.T) {
	e := testEngine(nil)
	flagged := filterFixture()[1] // Done + open flag
	assert.True(t, e.Matches(flagged, FilterSpec{NeedsEffort: true}, ""))

	notTerminal := flagged
	notTerminal.Status = domain.StatusReady
	assert.False(t, e.Matches(notTerminal, FilterSpec{NeedsEffort: true}, ""))

	cleared := filterFixture()[1]
	cleared.NeedsEffort = &domain.NeedsEffort{State: domain.NeedsEffortCleared}
	assert.False(t, e.Matches(cleared, FilterSpec{NeedsEffort: true}, ""))
}

func TestMatches_HasWork(t *testing.T) {
	e := testEngine(nil)
	assert.True(t, e.Matches(filterFixture()[0], FilterSpec{HasWork: true}, ""))
	assert.False(t, e.Matches(filterFixture()[1], FilterSpec{HasWork: true}, ""))
}

func TestMatches_SearchOverIDAndTitle(t *testing.T) {
	e := testEngine(nil)
	tk := filterFixture()[0]
	assert.True(t, e.Matches(tk, FilterSpec{Search: "cmp-1"}, ""))
	assert.True(t, e.Matches(tk, FilterSpec{Search: "welcome JOURNEY"}, ""))
	assert.False(t, e.Matches(tk, FilterSpec{Search: "audit"}, ""))
}

func TestFacets_ExclusionIgnoresOwnFilter(t *testing.T) {
	e := testEngine(nil)
	tks := filterFixture()

	unconstrained := e.Facets(tks, FilterSpec{})
	constrained := e.Facets(tks, FilterSpec{Owner: []string{"p-ana"}})

	// Changing filter.owner must not change the owner option set.
	require.Equal(t, len(unconstrained.Owner), len(constrained.Owner))
	for i := range unconstrained.Owner {
		assert.Equal(t, unconstrained.Owner[i], constrained.Owner[i])
	}
	// But it must narrow the other facets.
	assert.Len(t, constrained.Status, 1)
	assert.Equal(t, domain.StatusReady, constrained.Status[0].Value)
}

func TestFacets_CountsReflectOtherActiveFilters(t *testing.T) {
	e := testEngine(nil)
	tks := filterFixture()
	f := e.Facets(tks, FilterSpec{Type: []string{"Campaign"}})

	// Two Campaign tickets: one Ready, one Backlog.
	byValue := map[string]int{}
	for _, o := range f.Status {
		byValue[o.Value] = o.Count
	}
	assert.Equal(t, 1, byValue[domain.StatusReady])
	assert.Equal(t, 1, byValue[domain.StatusBacklog])
	assert.Zero(t, byValue[domain.StatusDone])

	// Status options come back in enum order.
	require.NotEmpty(t, f.Status)
	assert.Equal(t, domain.StatusReady, f.Status[0].Value)
}
