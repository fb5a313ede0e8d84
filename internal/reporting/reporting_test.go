package reporting

import (
	"time"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

// Fixed clock for every derivation test: a Tuesday at noon.
var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testEngine(rates []domain.OwnerRate) *Engine {
	dir := testDirectory()
	ws := NewWorkstreamTable("Data", DefaultWorkstreamAliases())
	e := NewEngine(dir, ws, BuildRateIndex(rates, dir))
	return e.WithNow(func() time.Time { return testNow })
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func fptr(v float64) *float64 { return &v }
