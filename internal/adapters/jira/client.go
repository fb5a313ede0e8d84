/* Copyright (c) 2026 Dzeax <https://dzeax.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dzeax/mi-app-monet-sub000/internal/config"
)

type Client struct {
	baseURL string
	token   string
	user    string
	pass    string
	apiVer  string
	http    *http.Client
	log     zerolog.Logger
}

func New(cfg config.Config, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.JiraBaseURL,
		token:   cfg.JiraPAT,
		user:    cfg.JiraUsername,
		pass:    cfg.JiraPassword,
		apiVer:  cfg.JiraAPIVersion,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		log:     logger,
	}
}

func (c *Client) apiURL(path string, q url.Values) string {
	base := strings.TrimRight(c.baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := base + path
	if len(q) > 0 {
		u = u + "?" + q.Encode()
	}
	return u
}

// doJSON runs one authenticated request with up to three attempts; only 429
// and 5xx are retried, other API errors return immediately.
func (c *Client) doJSON(ctx context.Context, method, u string, body any) (map[string]any, error) {
	if c.baseURL == "" {
		return nil, errors.New("jira: empty baseURL")
	}
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = b
	}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		out, retriable, err := c.attempt(ctx, method, u, payload)
		if err == nil {
			return out, nil
		}
		if !retriable {
			return nil, err
		}
		lastErr = err
		time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, u string, payload []byte) (map[string]any, bool, error) {
	var r io.Reader
	if payload != nil {
		r = strings.NewReader(string(payload))
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, false, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.user != "" && c.pass != "":
		req.SetBasicAuth(c.user, c.pass)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
		return nil, resp.StatusCode == 429 || resp.StatusCode >= 500, apiErr
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, err
	}
	return out, false, nil
}

// Search runs a JQL query page. API v2 uses GET, v3 POSTs the body.
func (c *Client) Search(ctx context.Context, jql string, startAt, max int) (map[string]any, error) {
	if jql == "" {
		return nil, errors.New("jira: empty jql")
	}
	if c.apiVer == "2" {
		q := url.Values{}
		q.Set("jql", jql)
		if startAt > 0 {
			q.Set("startAt", fmt.Sprint(startAt))
		}
		if max > 0 {
			q.Set("maxResults", fmt.Sprint(max))
		}
		q.Set("fields", "*all")
		return c.get(ctx, c.apiURL("/rest/api/2/search", q))
	}
	body := map[string]any{"jql": jql, "startAt": startAt, "maxResults": max}
	return c.post(ctx, c.apiURL("/rest/api/3/search", url.Values{"fields": []string{"*all"}}), body)
}

// Issue fetches one issue with all fields.
func (c *Client) Issue(ctx context.Context, key string) (map[string]any, error) {
	if key == "" {
		return nil, errors.New("jira: empty issue key")
	}
	q := url.Values{}
	q.Set("fields", "*all")
	path := "/rest/api/" + c.ver() + "/issue/" + url.PathEscape(key)
	return c.get(ctx, c.apiURL(path, q))
}

func (c *Client) ver() string {
	if c.apiVer == "" {
		return "2"
	}
	return c.apiVer
}

func (c *Client) get(ctx context.Context, u string) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodGet, u, nil)
}

func (c *Client) post(ctx context.Context, u string, body any) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodPost, u, body)
}
