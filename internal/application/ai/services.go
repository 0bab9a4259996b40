package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/bryanwahyu/automaton-review/internal/domain/ai"
)

// Service wraps a model client with the call policy: an optional request
// rate limit and an optional retry of transport errors.
type Service struct {
	client      ai.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
}

// NewService builds the policy. rps <= 0 disables limiting; maxAttempts <= 1
// means a single attempt.
func NewService(client ai.Client, rps float64, maxAttempts int) *Service {
	s := &Service{client: client, maxAttempts: maxAttempts, backoff: time.Second}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = 1
	}
	return s
}

var _ ai.Client = (*Service)(nil)

func (s *Service) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		out, err := s.client.Complete(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == s.maxAttempts {
			break
		}

		wait := s.backoff * time.Duration(attempt)
		if errors.Is(err, ai.ErrQuotaExceeded) {
			wait *= 5
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("model call failed, retrying")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	if s.maxAttempts > 1 {
		return "", fmt.Errorf("after %d attempts: %w", s.maxAttempts, lastErr)
	}
	return "", lastErr
}
