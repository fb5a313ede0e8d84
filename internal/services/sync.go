/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dzeax/mi-app-monet-sub000/internal/domain"
	"github.com/dzeax/mi-app-monet-sub000/internal/obs"
)

const syncPageSize = 50

// RunSync mirrors the Jira project into the tickets table, then applies the
// needs-effort rule. Bookkeeping lands in sync_runs either way.
func (s *Service) RunSync(ctx context.Context) error {
	runID, err := s.repo.StartSyncRun(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("start sync run failed")
	}
	s.log.Info().Msg("sync: start")

	scanned, flagged, etlErr := s.runETL(ctx)
	if runID != 0 {
		errStr := ""
		if etlErr != nil {
			errStr = etlErr.Error()
		}
		if err := s.repo.FinishSyncRun(ctx, runID, scanned, flagged, etlErr == nil, errStr); err != nil {
			s.log.Error().Err(err).Msg("finish sync run failed")
		}
	}
	if etlErr != nil {
		obs.SyncRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("sync: %w", etlErr)
	}
	obs.SyncRuns.WithLabelValues("ok").Inc()
	s.log.Info().Int("scanned", scanned).Int("flagged", flagged).Msg("sync: done")
	return nil
}

func (s *Service) runETL(ctx context.Context) (int, int, error) {
	jql := strings.TrimSpace(s.cfg.JiraDefaultJQL)
	if jql == "" {
		jql = "updated >= -30d"
	}
	if s.cfg.JiraProject != "" {
		jql = fmt.Sprintf("project = %s AND (%s)", s.cfg.JiraProject, jql)
	}

	var scanned, flagged int64
	workerCount := s.cfg.WorkersJira
	if workerCount <= 0 {
		workerCount = 6
	}
	startAt := 0
	for {
		page, err := s.jira.Search(ctx, jql, startAt, syncPageSize)
		if err != nil {
			return int(scanned), int(flagged), err
		}
		arr, _ := page["issues"].([]any)
		if len(arr) == 0 {
			break
		}
		jobs := make(chan map[string]any)
		var wg sync.WaitGroup
		for w := 0; w < workerCount; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for im := range jobs {
					if f := s.syncIssue(ctx, im); f {
						atomic.AddInt64(&flagged, 1)
					}
				}
			}()
		}
		for _, it := range arr {
			if im, _ := it.(map[string]any); im != nil {
				jobs <- im
				scanned++
			}
		}
		close(jobs)
		wg.Wait()
		if len(arr) < syncPageSize {
			break
		}
		startAt += syncPageSize
	}
	obs.SyncTicketsScanned.Add(float64(scanned))
	return int(scanned), int(flagged), nil
}

// syncIssue upserts one Jira issue and returns whether the needs-effort flag
// was newly opened for it.
func (s *Service) syncIssue(ctx context.Context, im map[string]any) bool {
	t := s.mapIssue(im)
	if t.TicketID == "" {
		return false
	}
	id, err := s.repo.UpsertSyncedTicket(ctx, t)
	if err != nil {
		s.log.Error().Err(err).Str("ticket", t.TicketID).Msg("sync: upsert failed")
		return false
	}

	// A ticket that reached a terminal status with no logged effort needs a
	// human to fill in hours; flag it once, never re-open a cleared flag.
	terminal := t.Status == domain.StatusValidation || t.Status == domain.StatusDone
	if !terminal {
		return false
	}
	stored, err := s.repo.GetTicket(ctx, id)
	if err != nil {
		return false
	}
	work := stored.WorkHours
	for _, c := range stored.Contributions {
		work += c.WorkHours
	}
	if work > 0 {
		return false
	}
	ok, err := s.repo.FlagNeedsEffort(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Str("ticket", t.TicketID).Msg("sync: flag failed")
		return false
	}
	return ok
}

// mapIssue lowers one duck-typed Jira payload into a Ticket. The feed is not
// contractually complete, so every field degrades to empty rather than
// erroring.
func (s *Service) mapIssue(im map[string]any) domain.Ticket {
	fields, _ := im["fields"].(map[string]any)
	if fields == nil {
		return domain.Ticket{}
	}
	t := domain.Ticket{TicketID: toStrAny(im["key"])}
	t.Title = toStrAny(fields["summary"])
	if ss, ok := fields["status"].(map[string]any); ok {
		t.Status = canonicalStatus(toStrAny(ss["name"]))
	} else {
		t.Status = domain.StatusBacklog
	}
	if pr, ok := fields["priority"].(map[string]any); ok {
		t.Priority = canonicalPriority(toStrAny(pr["name"]))
	}
	if tp, ok := fields["issuetype"].(map[string]any); ok {
		t.Type = toStrAny(tp["name"])
	}
	if as, ok := fields["assignee"].(map[string]any); ok {
		t.JiraAssignee = toStrAny(as["displayName"])
		t.Owner = t.JiraAssignee
	}
	if rp, ok := fields["reporter"].(map[string]any); ok {
		t.Reporter = toStrAny(rp["displayName"])
	}
	t.AssignedDate = parseTimeUTC(fields["created"])
	t.DueDate = parseTimeUTC(fields["duedate"])
	t.Comments = toStrAny(fields["description"])
	if base := strings.TrimRight(s.cfg.JiraBaseURL, "/"); base != "" && t.TicketID != "" {
		t.JiraURL = base + "/browse/" + t.TicketID
	}
	return t
}

// canonicalStatus folds the tracker's status names into the dashboard's fixed
// enumeration.
func canonicalStatus(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case key == "" || key == "backlog" || key == "open" || strings.Contains(key, "to do") || key == "todo":
		return domain.StatusBacklog
	case strings.Contains(key, "refin") || strings.Contains(key, "groom"):
		return domain.StatusRefining
	case strings.Contains(key, "ready"):
		return domain.StatusReady
	case strings.Contains(key, "progress") || key == "doing":
		return domain.StatusInProgress
	case strings.Contains(key, "valid") || strings.Contains(key, "review") || strings.Contains(key, "test") || strings.Contains(key, "qa"):
		return domain.StatusValidation
	case strings.Contains(key, "done") || strings.Contains(key, "closed") || strings.Contains(key, "resolve"):
		return domain.StatusDone
	default:
		return domain.StatusBacklog
	}
}

func canonicalPriority(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case key == "p1" || strings.Contains(key, "highest") || strings.Contains(key, "critical") || strings.Contains(key, "blocker"):
		return "P1"
	case key == "p2" || strings.Contains(key, "high") || strings.Contains(key, "major"):
		return "P2"
	case key == "":
		return ""
	default:
		return "P3"
	}
}

// PollAdvance compares the stored last-success timestamp with the one the
// caller saw previously. It reports true at most once per distinct success
// timestamp, which is the ordering guarantee the dashboard poll relies on.
func (s *Service) PollAdvance(ctx context.Context, seen time.Time) (time.Time, bool, error) {
	last, err := s.repo.LastSuccess(ctx)
	if err != nil {
		return seen, false, err
	}
	next, advanced := advance(seen, last)
	return next, advanced, nil
}

func advance(seen, last time.Time) (time.Time, bool) {
	if last.IsZero() || !last.After(seen) {
		return seen, false
	}
	return last, true
}
