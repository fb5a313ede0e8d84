/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dzeax/mi-app-monet-sub000/internal/config"
	"github.com/dzeax/mi-app-monet-sub000/internal/repo"
)

type service interface {
	RunSync(ctx context.Context) error
	RunWeeklyDigest(ctx context.Context) error
	PollAdvance(ctx context.Context, seen time.Time) (time.Time, bool, error)
}

// Advisory lock keys; one per job so a slow sync never blocks the digest.
const (
	syncLockKey   int64 = 515151
	digestLockKey int64 = 424242
)

type Cron struct {
	cfg  config.Config
	log  zerolog.Logger
	svc  service
	repo *repo.Repository
	c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, r *repo.Repository) *Cron {
	loc, _ := time.LoadLocation(cfg.TZ)
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
	_, _ = c.AddFunc(cfg.SyncCron, cr.sync)
	_, _ = c.AddFunc(cfg.DigestCron, cr.weekly)
	return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) sync() {
	cr.withLock(syncLockKey, 10*time.Minute, "sync", cr.svc.RunSync)
}

func (cr *Cron) weekly() {
	cr.withLock(digestLockKey, 5*time.Minute, "weekly digest", cr.svc.RunWeeklyDigest)
}

// withLock runs job under a Postgres advisory lock so only one replica fires.
func (cr *Cron) withLock(key int64, timeout time.Duration, name string, job func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ok, err := cr.repo.TryAdvisoryLock(ctx, key)
	if err != nil {
		cr.log.Error().Err(err).Str("job", name).Msg("cron: lock error")
		return
	}
	if !ok {
		cr.log.Info().Str("job", name).Msg("cron: already running elsewhere")
		return
	}
	defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), key) }()
	cr.log.Info().Str("job", name).Msg("cron: start")
	if err := job(ctx); err != nil {
		cr.log.Error().Err(err).Str("job", name).Msg("cron: job failed")
	}
}

// RunPoller watches the last successful sync and logs each advance. Returns
// when ctx is done. The same advance guard backs the dashboard refresh poll,
// so at most one event fires per completed sync.
func (cr *Cron) RunPoller(ctx context.Context) {
	ticker := time.NewTicker(cr.cfg.PollInterval)
	defer ticker.Stop()
	var seen time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next, advanced, err := cr.svc.PollAdvance(ctx, seen)
			if err != nil {
				cr.log.Warn().Err(err).Msg("poll: last-success lookup failed")
				continue
			}
			seen = next
			if advanced {
				cr.log.Info().Time("last_success", seen).Msg("poll: sync advanced")
			}
		}
	}
}
