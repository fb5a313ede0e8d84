/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "time"

// Ticket statuses as mirrored from the external tracker.
const (
	StatusBacklog    = "Backlog"
	StatusRefining   = "Refining"
	StatusReady      = "Ready"
	StatusInProgress = "In progress"
	StatusValidation = "Validation"
	StatusDone       = "Done"
)

var Statuses = []string{StatusBacklog, StatusRefining, StatusReady, StatusInProgress, StatusValidation, StatusDone}

var Priorities = []string{"P1", "P2", "P3"}

// Needs-effort flag states.
const (
	NeedsEffortOpen      = "open"
	NeedsEffortCleared   = "cleared"
	NeedsEffortDismissed = "dismissed"
)

type NeedsEffort struct {
	State string     `json:"state"`
	SetAt *time.Time `json:"setAt,omitempty"`
}

// Contribution is one person's logged effort against a ticket. PrepHours is
// nil when never entered; the effective value is derived at aggregation time.
type Contribution struct {
	Owner      string     `json:"owner"`
	PersonID   string     `json:"personId,omitempty"`
	EffortDate *time.Time `json:"effortDate,omitempty"`
	WorkHours  float64    `json:"workHours"`
	PrepHours  *float64   `json:"prepHours,omitempty"`
	Workstream string     `json:"workstream,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// Ticket is a work item mirrored from Jira. Owner/WorkHours/PrepHours are the
// legacy single-contributor fields, still authoritative when Contributions is
// empty.
type Ticket struct {
	ID            int64          `json:"id"`
	TicketID      string         `json:"ticketId"`
	Title         string         `json:"title"`
	Status        string         `json:"status"`
	Priority      string         `json:"priority"`
	Type          string         `json:"type"`
	Owner         string         `json:"owner"`
	JiraAssignee  string         `json:"jiraAssignee"`
	Reporter      string         `json:"reporter"`
	AssignedDate  *time.Time     `json:"assignedDate,omitempty"`
	DueDate       *time.Time     `json:"dueDate,omitempty"`
	EtaDate       *time.Time     `json:"etaDate,omitempty"`
	Comments      string         `json:"comments,omitempty"`
	JiraURL       string         `json:"jiraUrl,omitempty"`
	WorkHours     float64        `json:"workHours"`
	PrepHours     *float64       `json:"prepHours,omitempty"`
	Contributions []Contribution `json:"contributions,omitempty"`
	NeedsEffort   *NeedsEffort   `json:"needsEffort,omitempty"`
}

// PersonEntry maps free-text spellings of a person's name to one canonical key.
type PersonEntry struct {
	PersonID    string   `json:"personId"`
	DisplayName string   `json:"displayName"`
	Aliases     []string `json:"aliases,omitempty"`
}

// OwnerRate is a person's cost per working day, scoped by calendar year.
type OwnerRate struct {
	Year      int     `json:"year"`
	PersonID  string  `json:"personId,omitempty"`
	Owner     string  `json:"owner"`
	DailyRate float64 `json:"dailyRate"`
	Currency  string  `json:"currency"`
}

// CatalogItem is a labeled entry in one of the editable catalogs
// (owners, types, workstreams).
type CatalogItem struct {
	ID    int64  `json:"id"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

const (
	CatalogOwners      = "owners"
	CatalogTypes       = "types"
	CatalogWorkstreams = "workstreams"
)

// SyncRun records one Jira sync execution.
type SyncRun struct {
	ID             int64      `json:"id"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	TicketsScanned int        `json:"tickets_scanned"`
	TicketsFlagged int        `json:"tickets_flagged"`
	Success        bool       `json:"success"`
	Error          string     `json:"error"`
}

// AuthCapabilities is derived at the HTTP boundary and passed down explicitly.
type AuthCapabilities struct {
	IsAdmin  bool
	IsEditor bool
}
