/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dzeax/mi-app-monet-sub000/internal/config"
	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
)

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, logger zerolog.Logger) *DB {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect failed")
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		logger.Fatal().Err(err).Msg("db ping failed")
	}
	return &DB{Pool: pool, log: logger}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
	db  *DB
	log zerolog.Logger
}

func New(d *DB, logger zerolog.Logger) *Repository { return &Repository{db: d, log: logger} }

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
	return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	if !ok && err == nil {
		return errors.New("advisory unlock returned false")
	}
	return err
}

// ---- Tickets ----

const ticketCols = `id, ticket_id, title, status, priority, type, owner, jira_assignee,
	reporter, assigned_date, due_date, eta_date, comments, jira_url,
	work_hours, prep_hours, needs_effort_state, needs_effort_set_at`

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var t domain.Ticket
	var neState *string
	var neSetAt *time.Time
	err := row.Scan(&t.ID, &t.TicketID, &t.Title, &t.Status, &t.Priority, &t.Type, &t.Owner,
		&t.JiraAssignee, &t.Reporter, &t.AssignedDate, &t.DueDate, &t.EtaDate, &t.Comments,
		&t.JiraURL, &t.WorkHours, &t.PrepHours, &neState, &neSetAt)
	if err != nil {
		return t, err
	}
	if neState != nil && *neState != "" {
		t.NeedsEffort = &domain.NeedsEffort{State: *neState, SetAt: neSetAt}
	}
	return t, nil
}

// ListTickets returns the full mirror with contributions attached, ordered by
// assigned date descending (feed order for the dashboard).
func (r *Repository) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+ticketCols+` FROM tickets ORDER BY assigned_date DESC NULLS LAST, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Ticket
	index := map[int64]int{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if len(out) == 0 {
		return out, nil
	}
	crows, err := r.db.Pool.Query(ctx, `SELECT ticket_id, owner, person_id, effort_date, work_hours, prep_hours, workstream, notes
		FROM contributions ORDER BY ticket_id, position`)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var tid int64
		var c domain.Contribution
		var personID, workstream, notes *string
		if err := crows.Scan(&tid, &c.Owner, &personID, &c.EffortDate, &c.WorkHours, &c.PrepHours, &workstream, &notes); err != nil {
			return nil, err
		}
		if personID != nil {
			c.PersonID = *personID
		}
		if workstream != nil {
			c.Workstream = *workstream
		}
		if notes != nil {
			c.Notes = *notes
		}
		if i, ok := index[tid]; ok {
			out[i].Contributions = append(out[i].Contributions, c)
		}
	}
	return out, crows.Err()
}

func (r *Repository) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	t, err := scanTicket(r.db.Pool.QueryRow(ctx, `SELECT `+ticketCols+` FROM tickets WHERE id=$1`, id))
	if err != nil {
		return t, err
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT owner, COALESCE(person_id,''), effort_date, work_hours, prep_hours,
		COALESCE(workstream,''), COALESCE(notes,'') FROM contributions WHERE ticket_id=$1 ORDER BY position`, id)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.Contribution
		if err := rows.Scan(&c.Owner, &c.PersonID, &c.EffortDate, &c.WorkHours, &c.PrepHours, &c.Workstream, &c.Notes); err != nil {
			return t, err
		}
		t.Contributions = append(t.Contributions, c)
	}
	return t, rows.Err()
}

// UpsertTicket writes a ticket keyed by its external ticket_id, returning the
// internal id. Used by sync and CSV import; the needs-effort flag is managed
// separately and deliberately not overwritten here.
func (r *Repository) UpsertTicket(ctx context.Context, t domain.Ticket) (int64, error) {
	const q = `
		INSERT INTO tickets(ticket_id, title, status, priority, type, owner, jira_assignee,
			reporter, assigned_date, due_date, eta_date, comments, jira_url, work_hours, prep_hours)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT(ticket_id) DO UPDATE SET
			title=EXCLUDED.title,
			status=EXCLUDED.status,
			priority=EXCLUDED.priority,
			type=EXCLUDED.type,
			owner=EXCLUDED.owner,
			jira_assignee=EXCLUDED.jira_assignee,
			reporter=EXCLUDED.reporter,
			assigned_date=EXCLUDED.assigned_date,
			due_date=EXCLUDED.due_date,
			eta_date=EXCLUDED.eta_date,
			comments=EXCLUDED.comments,
			jira_url=EXCLUDED.jira_url,
			work_hours=EXCLUDED.work_hours,
			prep_hours=EXCLUDED.prep_hours
		RETURNING id`
	var id int64
	row := r.db.Pool.QueryRow(ctx, q, t.TicketID, t.Title, t.Status, t.Priority, t.Type, t.Owner,
		t.JiraAssignee, t.Reporter, t.AssignedDate, t.DueDate, t.EtaDate, t.Comments, t.JiraURL,
		t.WorkHours, t.PrepHours)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// UpsertSyncedTicket is the sync variant: on conflict it updates only the
// tracker-owned columns, leaving owner, hours and contributions (entered in
// the dashboard) untouched.
func (r *Repository) UpsertSyncedTicket(ctx context.Context, t domain.Ticket) (int64, error) {
	const q = `
		INSERT INTO tickets(ticket_id, title, status, priority, type, owner, jira_assignee,
			reporter, assigned_date, due_date, eta_date, comments, jira_url, work_hours, prep_hours)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT(ticket_id) DO UPDATE SET
			title=EXCLUDED.title,
			status=EXCLUDED.status,
			priority=EXCLUDED.priority,
			type=EXCLUDED.type,
			jira_assignee=EXCLUDED.jira_assignee,
			reporter=EXCLUDED.reporter,
			assigned_date=EXCLUDED.assigned_date,
			due_date=EXCLUDED.due_date,
			jira_url=EXCLUDED.jira_url
		RETURNING id`
	var id int64
	row := r.db.Pool.QueryRow(ctx, q, t.TicketID, t.Title, t.Status, t.Priority, t.Type, t.Owner,
		t.JiraAssignee, t.Reporter, t.AssignedDate, t.DueDate, t.EtaDate, t.Comments, t.JiraURL,
		t.WorkHours, t.PrepHours)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) SaveTicket(ctx context.Context, t domain.Ticket) error {
	const q = `UPDATE tickets SET title=$2, status=$3, priority=$4, type=$5, owner=$6,
		jira_assignee=$7, reporter=$8, assigned_date=$9, due_date=$10, eta_date=$11,
		comments=$12, jira_url=$13, work_hours=$14, prep_hours=$15 WHERE id=$1`
	ct, err := r.db.Pool.Exec(ctx, q, t.ID, t.Title, t.Status, t.Priority, t.Type, t.Owner,
		t.JiraAssignee, t.Reporter, t.AssignedDate, t.DueDate, t.EtaDate, t.Comments, t.JiraURL,
		t.WorkHours, t.PrepHours)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) DeleteTicket(ctx context.Context, id int64) error {
	ct, err := r.db.Pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ReplaceContributions swaps a ticket's contribution list atomically,
// preserving order via the position column.
func (r *Repository) ReplaceContributions(ctx context.Context, ticketID int64, cs []domain.Contribution) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM contributions WHERE ticket_id=$1`, ticketID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	const q = `INSERT INTO contributions(ticket_id, position, owner, person_id, effort_date, work_hours, prep_hours, workstream, notes)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	for i, c := range cs {
		var personID any
		if c.PersonID != "" {
			personID = c.PersonID
		}
		batch.Queue(q, ticketID, i, c.Owner, personID, c.EffortDate, c.WorkHours, c.PrepHours, c.Workstream, c.Notes)
	}
	br := tx.SendBatch(ctx, batch)
	for range cs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) SetNeedsEffort(ctx context.Context, ticketID int64, state string) error {
	ct, err := r.db.Pool.Exec(ctx,
		`UPDATE tickets SET needs_effort_state=$2, needs_effort_set_at=now() WHERE id=$1`, ticketID, state)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// FlagNeedsEffort opens the flag only when it is not already set; returns
// whether a row changed so sync can count newly flagged tickets.
func (r *Repository) FlagNeedsEffort(ctx context.Context, ticketID int64) (bool, error) {
	ct, err := r.db.Pool.Exec(ctx,
		`UPDATE tickets SET needs_effort_state=$2, needs_effort_set_at=now()
		 WHERE id=$1 AND (needs_effort_state IS NULL OR needs_effort_state='')`,
		ticketID, domain.NeedsEffortOpen)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// ---- Person directory / rates / catalogs ----

func (r *Repository) ListDirectory(ctx context.Context) ([]domain.PersonEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT person_id, display_name, COALESCE(aliases, '{}') FROM person_directory ORDER BY display_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.PersonEntry
	for rows.Next() {
		var e domain.PersonEntry
		if err := rows.Scan(&e.PersonID, &e.DisplayName, &e.Aliases); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) ListRates(ctx context.Context, years []int) ([]domain.OwnerRate, error) {
	q := `SELECT year, COALESCE(person_id,''), owner, daily_rate, currency FROM owner_rates`
	args := []any{}
	if len(years) > 0 {
		q += ` WHERE year = ANY($1)`
		args = append(args, years)
	}
	q += ` ORDER BY year, owner`
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.OwnerRate
	for rows.Next() {
		var e domain.OwnerRate
		if err := rows.Scan(&e.Year, &e.PersonID, &e.Owner, &e.DailyRate, &e.Currency); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) ListCatalog(ctx context.Context, kind string) ([]domain.CatalogItem, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, kind, label FROM catalog_items WHERE kind=$1 ORDER BY label`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.CatalogItem
	for rows.Next() {
		var it domain.CatalogItem
		if err := rows.Scan(&it.ID, &it.Kind, &it.Label); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repository) AddCatalogItem(ctx context.Context, kind, label string) (domain.CatalogItem, error) {
	it := domain.CatalogItem{Kind: kind, Label: label}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO catalog_items(kind, label) VALUES($1,$2)
		 ON CONFLICT(kind, label) DO UPDATE SET label=EXCLUDED.label
		 RETURNING id`, kind, label).Scan(&it.ID)
	return it, err
}

// ---- Sync runs ----

func (r *Repository) StartSyncRun(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO sync_runs(started_at, success) VALUES(now(), false) RETURNING id`).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) FinishSyncRun(ctx context.Context, id int64, scanned, flagged int, success bool, errStr string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE sync_runs SET finished_at=now(), tickets_scanned=$2, tickets_flagged=$3, success=$4, error=$5 WHERE id=$1`,
		id, scanned, flagged, success, errStr)
	return err
}

func (r *Repository) GetLastRun(ctx context.Context) (*domain.SyncRun, error) {
	const q = `SELECT id, started_at, finished_at, COALESCE(tickets_scanned,0), COALESCE(tickets_flagged,0),
		COALESCE(success,false), COALESCE(error,'') FROM sync_runs ORDER BY id DESC LIMIT 1`
	run := &domain.SyncRun{}
	err := r.db.Pool.QueryRow(ctx, q).Scan(&run.ID, &run.StartedAt, &run.FinishedAt,
		&run.TicketsScanned, &run.TicketsFlagged, &run.Success, &run.Error)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

// LastSuccess returns the finish time of the most recent successful run, or
// zero when none exists. The poller compares successive values and acts only
// when the timestamp advances.
func (r *Repository) LastSuccess(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	err := r.db.Pool.QueryRow(ctx,
		`SELECT finished_at FROM sync_runs WHERE success ORDER BY id DESC LIMIT 1`).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("last success: %w", err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}
