/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dzeax/mi-app-monet-sub000/internal/reporting"
)

// RunWeeklyDigest sends the aggregate workload/budget picture to the
// configured chats. Failures are logged per chat; the digest is best-effort.
func (s *Service) RunWeeklyDigest(ctx context.Context) error {
	if s.tg == nil || len(s.cfg.TelegramChatIDs) == 0 {
		return nil
	}
	rep, err := s.Report(ctx, reporting.Query{})
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	open, err := s.Report(ctx, reporting.Query{Filter: reporting.FilterSpec{NeedsEffort: true}})
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	text := renderDigest(rep.Totals, open.Totals.Count)
	plain := plainDigest(rep.Totals, open.Totals.Count)
	for _, chat := range s.cfg.TelegramChatIDs {
		if err := s.tg.SendMarkdownV2(ctx, chat, text); err != nil {
			// MarkdownV2 entity errors are a Telegram classic; retry unformatted.
			s.log.Warn().Err(err).Int64("chat", chat).Msg("digest markdown send failed, retrying plain")
			if err := s.tg.SendMessage(ctx, chat, plain); err != nil {
				s.log.Error().Err(err).Int64("chat", chat).Msg("digest send failed")
			}
		}
	}
	return nil
}

func renderDigest(t reporting.Totals, needsEffort int) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "*Campaign Ops*\n")
	fmt.Fprintf(b, "Weekly workload summary\n\n")
	fmt.Fprintf(b, "*Tickets:* %d\n", t.Count)
	fmt.Fprintf(b, "*Hours:* %s\n", escapeMarkdownV2(fmt.Sprintf("%.1f", t.TotalHours)))
	fmt.Fprintf(b, "*Days:* %s\n", escapeMarkdownV2(fmt.Sprintf("%.1f", t.TotalDays)))
	fmt.Fprintf(b, "*Budget:* %s\n", escapeMarkdownV2(fmt.Sprintf("%.0f", t.Budget)))
	if needsEffort > 0 {
		fmt.Fprintf(b, "\n*Needs effort:* %d tickets closed without logged hours\n", needsEffort)
	}
	return b.String()
}

func plainDigest(t reporting.Totals, needsEffort int) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Campaign Ops weekly workload summary\n\n")
	fmt.Fprintf(b, "Tickets: %d\n", t.Count)
	fmt.Fprintf(b, "Hours: %.1f\n", t.TotalHours)
	fmt.Fprintf(b, "Days: %.1f\n", t.TotalDays)
	fmt.Fprintf(b, "Budget: %.0f\n", t.Budget)
	if needsEffort > 0 {
		fmt.Fprintf(b, "\nNeeds effort: %d tickets closed without logged hours\n", needsEffort)
	}
	return b.String()
}

var markdownV2Specials = []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}

func escapeMarkdownV2(s string) string {
	for _, ch := range markdownV2Specials {
		s = strings.ReplaceAll(s, ch, "\\"+ch)
	}
	return s
}
