package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const errBodyLimit = 512

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Client wraps http.Client with JSON decoding and optional retries.
// MaxRetries of zero means a single attempt.
type Client struct {
	HTTP       *http.Client
	Token      string
	MaxRetries uint64
	Log        *zap.Logger
}

func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) error {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 1 * time.Second
	exp.MaxElapsedTime = 3 * time.Second

	attempt := 0
	op := func() error {
		attempt++
		r := req.WithContext(ctx)
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			r.Body = body
		}
		resp, err := hc.Do(r)
		if err != nil {
			log.Warn("http.request_failed", zap.String("url", req.URL.Redacted()), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
			serr := &StatusError{Code: resp.StatusCode, Body: string(snippet)}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				log.Warn("http.retryable_status", zap.String("url", req.URL.Redacted()), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt))
				return serr
			}
			return backoff.Permanent(serr)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.WithContext(exp, ctx), c.MaxRetries)
	return backoff.Retry(op, policy)
}
