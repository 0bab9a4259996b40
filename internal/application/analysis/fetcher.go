package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-review/internal/redact"
)

const (
	DefaultCloneRetries = 3
	DefaultRetryBackoff = 2 * time.Second
)

// AuthURL injects token into the credential slot of rawURL:
// scheme://<token>@host/... An empty token returns rawURL unchanged.
func AuthURL(rawURL, token string) string {
	if token == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		i := strings.Index(rawURL, "://")
		if i < 0 {
			return rawURL
		}
		return rawURL[:i+3] + token + "@" + rawURL[i+3:]
	}
	u.User = url.User(token)
	return u.String()
}

// Fetcher shallow-clones a repository with bounded retry.
type Fetcher struct {
	VCS     domain.VCS
	Retries int
	Backoff time.Duration
	// Sleep waits between attempts; nil means a context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// RetryFunc is told about every failed attempt that will be retried.
type RetryFunc func(attempt int, err error)

// Fetch clones repoURL into dir, retrying clone failures. The token never
// appears in returned errors or log lines.
func (f *Fetcher) Fetch(ctx context.Context, repoURL, token, dir string, onRetry RetryFunc) error {
	retries := f.Retries
	if retries < 1 {
		retries = DefaultCloneRetries
	}
	cloneURL := AuthURL(repoURL, token)
	logger := log.With().Str("repo", redact.URL(repoURL)).Logger()

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		err := f.VCS.Clone(ctx, cloneURL, dir)
		if err == nil {
			return nil
		}
		lastErr = errors.New(redact.Token(err.Error(), token))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == retries {
			break
		}
		logger.Warn().Err(lastErr).Int("attempt", attempt).Msg("clone failed, retrying")
		if onRetry != nil {
			onRetry(attempt, lastErr)
		}
		if err := f.sleep(ctx, f.Backoff); err != nil {
			return err
		}
	}
	return fmt.Errorf("clone failed after %d attempts: %w", retries, lastErr)
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if f.Sleep != nil {
		return f.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
