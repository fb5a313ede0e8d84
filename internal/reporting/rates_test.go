package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

func TestRateFor_LookupOrder(t *testing.T) {
	e := testEngine([]domain.OwnerRate{
		{Year: 2026, PersonID: "p-ana", Owner: "Ana García", DailyRate: 400, Currency: "EUR"},
		{Year: 2026, Owner: "Freelancer Bob", DailyRate: 250, Currency: "EUR"},
	})

	// Canonical key via alias spelling.
	r, ok := e.RateFor(domain.Contribution{Owner: "ana garcia", EffortDate: date(2026, 2, 1)}, nil)
	require.True(t, ok)
	assert.Equal(t, 400.0, r.DailyRate)

	// Raw owner string, no directory entry.
	r, ok = e.RateFor(domain.Contribution{Owner: "Freelancer Bob", EffortDate: date(2026, 2, 1)}, nil)
	require.True(t, ok)
	assert.Equal(t, 250.0, r.DailyRate)

	_, ok = e.RateFor(domain.Contribution{Owner: "nobody", EffortDate: date(2026, 2, 1)}, nil)
	assert.False(t, ok, "missing rate must be a clean miss, not zero")
}

func TestRateFor_YearFallbackChain(t *testing.T) {
	e := testEngine([]domain.OwnerRate{
		{Year: 2025, PersonID: "p-ana", Owner: "Ana García", DailyRate: 350, Currency: "EUR"},
		{Year: 2026, PersonID: "p-ana", Owner: "Ana García", DailyRate: 400, Currency: "EUR"},
	})
	c := domain.Contribution{PersonID: "p-ana"}

	// Effort date year wins.
	c.EffortDate = date(2025, 11, 30)
	r, ok := e.RateFor(c, date(2026, 1, 1))
	require.True(t, ok)
	assert.Equal(t, 350.0, r.DailyRate)

	// No effort date: assigned date year.
	c.EffortDate = nil
	r, ok = e.RateFor(c, date(2025, 3, 3))
	require.True(t, ok)
	assert.Equal(t, 350.0, r.DailyRate)

	// Neither: current year (testNow is 2026).
	r, ok = e.RateFor(c, nil)
	require.True(t, ok)
	assert.Equal(t, 400.0, r.DailyRate)

	// Year with no table is a miss.
	c.EffortDate = date(2019, 1, 1)
	_, ok = e.RateFor(c, nil)
	assert.False(t, ok)
}
