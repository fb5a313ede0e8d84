/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dzeax/mi-app-monet-sub000/internal/config"
)

type Client struct {
	token string
	http  *http.Client
	log   zerolog.Logger
}

func New(cfg config.Config, logger zerolog.Logger) *Client {
	return &Client{token: cfg.TelegramToken, http: &http.Client{Timeout: 10 * time.Second}, log: logger}
}

func (c *Client) send(ctx context.Context, body map[string]any) error {
	u := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", c.token)
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		bb, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram sendMessage status=%d body=%s", resp.StatusCode, string(bb))
	}
	return nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if c.token == "" || chatID == 0 {
		return fmt.Errorf("telegram: missing token or chat id")
	}
	return c.send(ctx, map[string]any{"chat_id": chatID, "text": text, "disable_web_page_preview": true})
}

func (c *Client) SendMarkdownV2(ctx context.Context, chatID int64, text string) error {
	if c.token == "" || chatID == 0 {
		return fmt.Errorf("telegram: missing token or chat id")
	}
	return c.send(ctx, map[string]any{"chat_id": chatID, "text": text, "parse_mode": "MarkdownV2", "disable_web_page_preview": true})
}
