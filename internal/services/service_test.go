package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzeax/mi-app-monet-sub000/internal/config"
	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

// fakeStore is an in-memory Store for exercising the service paths that the
// pgx repository backs in production.
type fakeStore struct {
	tickets map[int64]domain.Ticket
	nextID  int64
	flagged []int64
	synced  []domain.Ticket
}

func newFakeStore() *fakeStore {
	return &fakeStore{tickets: map[int64]domain.Ticket{}}
}

func (f *fakeStore) byTicketID(key string) (int64, bool) {
	for id, t := range f.tickets {
		if t.TicketID == key {
			return id, true
		}
	}
	return 0, false
}

func (f *fakeStore) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range f.tickets {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return domain.Ticket{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeStore) UpsertTicket(ctx context.Context, t domain.Ticket) (int64, error) {
	if id, ok := f.byTicketID(t.TicketID); ok {
		prev := f.tickets[id]
		t.ID = id
		t.Contributions = prev.Contributions
		t.NeedsEffort = prev.NeedsEffort
		f.tickets[id] = t
		return id, nil
	}
	f.nextID++
	t.ID = f.nextID
	f.tickets[t.ID] = t
	return t.ID, nil
}

func (f *fakeStore) UpsertSyncedTicket(ctx context.Context, t domain.Ticket) (int64, error) {
	f.synced = append(f.synced, t)
	if id, ok := f.byTicketID(t.TicketID); ok {
		// Conflict path updates tracker-owned columns only.
		prev := f.tickets[id]
		prev.Title = t.Title
		prev.Status = t.Status
		prev.Priority = t.Priority
		prev.Type = t.Type
		prev.JiraAssignee = t.JiraAssignee
		prev.Reporter = t.Reporter
		prev.AssignedDate = t.AssignedDate
		prev.DueDate = t.DueDate
		prev.JiraURL = t.JiraURL
		f.tickets[id] = prev
		return id, nil
	}
	f.nextID++
	t.ID = f.nextID
	f.tickets[t.ID] = t
	return t.ID, nil
}

func (f *fakeStore) SaveTicket(ctx context.Context, t domain.Ticket) error {
	prev, ok := f.tickets[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Contributions = prev.Contributions
	t.NeedsEffort = prev.NeedsEffort
	f.tickets[t.ID] = t
	return nil
}

func (f *fakeStore) DeleteTicket(ctx context.Context, id int64) error {
	if _, ok := f.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.tickets, id)
	return nil
}

func (f *fakeStore) ReplaceContributions(ctx context.Context, ticketID int64, cs []domain.Contribution) error {
	t, ok := f.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Contributions = cs
	f.tickets[ticketID] = t
	return nil
}

func (f *fakeStore) SetNeedsEffort(ctx context.Context, ticketID int64, state string) error {
	t, ok := f.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	t.NeedsEffort = &domain.NeedsEffort{State: state}
	f.tickets[ticketID] = t
	return nil
}

func (f *fakeStore) FlagNeedsEffort(ctx context.Context, ticketID int64) (bool, error) {
	t, ok := f.tickets[ticketID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if t.NeedsEffort != nil && t.NeedsEffort.State != "" {
		return false, nil
	}
	t.NeedsEffort = &domain.NeedsEffort{State: domain.NeedsEffortOpen}
	f.tickets[ticketID] = t
	f.flagged = append(f.flagged, ticketID)
	return true, nil
}

func (f *fakeStore) ListDirectory(ctx context.Context) ([]domain.PersonEntry, error) {
	return nil, nil
}

func (f *fakeStore) ListRates(ctx context.Context, years []int) ([]domain.OwnerRate, error) {
	return nil, nil
}

func (f *fakeStore) ListCatalog(ctx context.Context, kind string) ([]domain.CatalogItem, error) {
	return nil, nil
}

func (f *fakeStore) AddCatalogItem(ctx context.Context, kind, label string) (domain.CatalogItem, error) {
	return domain.CatalogItem{ID: 1, Kind: kind, Label: label}, nil
}

func (f *fakeStore) StartSyncRun(ctx context.Context) (int64, error) { return 1, nil }

func (f *fakeStore) FinishSyncRun(ctx context.Context, id int64, scanned, flagged int, success bool, errStr string) error {
	return nil
}

func (f *fakeStore) GetLastRun(ctx context.Context) (*domain.SyncRun, error) { return nil, nil }

func (f *fakeStore) LastSuccess(ctx context.Context) (time.Time, error) { return time.Time{}, nil }

type fakeJira struct {
	issue map[string]any
	calls []string
}

func (f *fakeJira) Search(ctx context.Context, jql string, startAt, max int) (map[string]any, error) {
	return map[string]any{"issues": []any{}}, nil
}

func (f *fakeJira) Issue(ctx context.Context, key string) (map[string]any, error) {
	f.calls = append(f.calls, key)
	return f.issue, nil
}

type fakeNotifier struct {
	mdErr error
	md    []string
	plain []string
}

func (f *fakeNotifier) SendMarkdownV2(ctx context.Context, chatID int64, text string) error {
	if f.mdErr != nil {
		return f.mdErr
	}
	f.md = append(f.md, text)
	return nil
}

func (f *fakeNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.plain = append(f.plain, text)
	return nil
}

func newTestService(st Store, jc JiraClient, tg Notifier) *Service {
	cfg := config.Config{
		DefaultWorkstream: "Data",
		JiraProject:       "CMP",
		TelegramChatIDs:   []int64{1},
	}
	return New(cfg, zerolog.Nop(), st, jc, tg)
}

var editor = domain.AuthCapabilities{IsEditor: true}

func issuePayload(key, status string) map[string]any {
	return map[string]any{
		"key": key,
		"fields": map[string]any{
			"summary": "synced ticket",
			"status":  map[string]any{"name": status},
		},
	}
}

func TestUpdateTicket_DefaultsEffortDateFromAssigned(t *testing.T) {
	st := newFakeStore()
	assigned := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	st.tickets[1] = domain.Ticket{
		ID: 1, TicketID: "CMP-1", Title: "Old campaign", Status: domain.StatusReady,
		AssignedDate: &assigned,
	}
	st.nextID = 1
	svc := newTestService(st, nil, nil)

	upd := st.tickets[1]
	upd.Contributions = []domain.Contribution{{Owner: "Ana", WorkHours: 3}}
	got, err := svc.UpdateTicket(context.Background(), editor, upd)
	require.NoError(t, err)
	require.Len(t, got.Contributions, 1)
	require.NotNil(t, got.Contributions[0].EffortDate, "a contribution added in an edit must get the default effort date")
	assert.True(t, got.Contributions[0].EffortDate.Equal(assigned), "pre-2026 assignment defaults to the assigned date")
}

func TestUpdateTicket_DefaultsEffortDateToTodayFor2026(t *testing.T) {
	st := newFakeStore()
	assigned := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	st.tickets[1] = domain.Ticket{
		ID: 1, TicketID: "CMP-2", Title: "New campaign", Status: domain.StatusReady,
		AssignedDate: &assigned,
	}
	st.nextID = 1
	svc := newTestService(st, nil, nil)

	upd := st.tickets[1]
	upd.Contributions = []domain.Contribution{
		{Owner: "Ana", WorkHours: 3},
		{Owner: "Luis", WorkHours: 2, EffortDate: &assigned},
	}
	got, err := svc.UpdateTicket(context.Background(), editor, upd)
	require.NoError(t, err)
	require.Len(t, got.Contributions, 2)
	require.NotNil(t, got.Contributions[0].EffortDate)
	assert.WithinDuration(t, time.Now(), *got.Contributions[0].EffortDate, time.Minute,
		"2026 assignment defaults to today, not the assigned date")
	assert.True(t, got.Contributions[1].EffortDate.Equal(assigned), "an explicit effort date is never overwritten")
}

func TestSyncIssue_FlagsOnlyTerminalZeroWork(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &fakeJira{}, nil)
	ctx := context.Background()

	assert.True(t, svc.syncIssue(ctx, issuePayload("CMP-1", "Done")),
		"terminal status with zero logged work must open the flag")
	assert.True(t, svc.syncIssue(ctx, issuePayload("CMP-2", "In Validation")))
	assert.False(t, svc.syncIssue(ctx, issuePayload("CMP-3", "In Progress")),
		"non-terminal status never flags")
	assert.False(t, svc.syncIssue(ctx, issuePayload("CMP-1", "Done")),
		"an already-open flag is not counted again")

	worked := domain.Ticket{TicketID: "CMP-4", Title: "x", Status: domain.StatusDone, WorkHours: 5}
	_, err := st.UpsertTicket(ctx, worked)
	require.NoError(t, err)
	assert.False(t, svc.syncIssue(ctx, issuePayload("CMP-4", "Done")),
		"logged work suppresses the flag")

	cleared := domain.Ticket{TicketID: "CMP-5", Title: "x", Status: domain.StatusDone,
		NeedsEffort: &domain.NeedsEffort{State: domain.NeedsEffortCleared}}
	_, err = st.UpsertTicket(ctx, cleared)
	require.NoError(t, err)
	assert.False(t, svc.syncIssue(ctx, issuePayload("CMP-5", "Done")),
		"a cleared flag is never re-opened")

	assert.Equal(t, 2, len(st.flagged))
}

func TestClearNeedsEffort_RefreshesFromTracker(t *testing.T) {
	st := newFakeStore()
	st.tickets[7] = domain.Ticket{
		ID: 7, TicketID: "CMP-7", Title: "x", Status: domain.StatusValidation,
		NeedsEffort: &domain.NeedsEffort{State: domain.NeedsEffortOpen},
	}
	st.nextID = 7
	jc := &fakeJira{issue: issuePayload("CMP-7", "Done")}
	svc := newTestService(st, jc, nil)
	ctx := context.Background()

	require.NoError(t, svc.SetNeedsEffort(ctx, editor, 7, domain.NeedsEffortCleared))
	require.Equal(t, []string{"CMP-7"}, jc.calls)
	require.Len(t, st.synced, 1)
	assert.Equal(t, domain.StatusDone, st.synced[0].Status)
	assert.Equal(t, domain.StatusDone, st.tickets[7].Status)

	// Dismissing is a pure bookkeeping action; the tracker is not consulted.
	require.NoError(t, svc.SetNeedsEffort(ctx, editor, 7, domain.NeedsEffortDismissed))
	assert.Len(t, jc.calls, 1)
}

func TestDigest_PlainTextFallback(t *testing.T) {
	st := newFakeStore()
	tg := &fakeNotifier{mdErr: errors.New("can't parse entities")}
	svc := newTestService(st, nil, tg)

	require.NoError(t, svc.RunWeeklyDigest(context.Background()))
	assert.Empty(t, tg.md)
	require.Len(t, tg.plain, 1)
	assert.Contains(t, tg.plain[0], "Tickets: 0")
}
