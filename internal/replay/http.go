package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/riichi/internal/domain/model"
)

type client struct {
	http    *http.Client
	baseURL string
	token   string
}

func newClient(cfg Config) *client {
	return &client{http: &http.Client{Timeout: cfg.Timeout}, baseURL: cfg.BaseURL, token: cfg.Token}
}

func (c *client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

func (c *client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *client) checkHealth(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// gameBody is the POST /games payload.
type gameBody struct {
	MajsoulID        string             `json:"majsoulId"`
	ContestID        string             `json:"contestId,omitempty"`
	ContestMajsoulID int64              `json:"contestMajsoulId,omitempty"`
	StartTime        string             `json:"start_time,omitempty"`
	EndTime          string             `json:"end_time"`
	Players          []model.PlayerRef  `json:"players"`
	FinalScore       []model.FinalScore `json:"finalScore"`
}

func newGameBody(g model.GameResult) gameBody {
	b := gameBody{
		MajsoulID:        g.MajsoulID,
		ContestID:        g.ContestID,
		ContestMajsoulID: g.ContestMajsoulID,
		EndTime:          g.EndTime.UTC().Format(time.RFC3339Nano),
		Players:          g.Players,
		FinalScore:       g.FinalScore,
	}
	if !g.StartTime.IsZero() {
		b.StartTime = g.StartTime.UTC().Format(time.RFC3339Nano)
	}
	return b
}

// submitGames posts games with cfg.Workers concurrent requests.
func submitGames(ctx context.Context, c *client, workers int, games []model.GameResult, stats *Stats) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, game := range games {
		g.Go(func() error {
			atomic.AddInt64(&stats.Submitted, 1)
			switch submitGame(ctx, c, game) {
			case http.StatusAccepted:
				atomic.AddInt64(&stats.Queued, 1)
			case http.StatusOK:
				atomic.AddInt64(&stats.Duplicates, 1)
			default:
				atomic.AddInt64(&stats.Failed, 1)
			}
			return ctx.Err()
		})
	}
	return g.Wait()
}

// submitGame returns the response status, or 0 when the request failed.
func submitGame(ctx context.Context, c *client, g model.GameResult) int {
	resp, err := c.do(ctx, http.MethodPost, "/games", newGameBody(g))
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}
