package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthURL(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		token string
		want  string
	}{
		{"https with token", "https://github.com/org/repo.git", "tok123", "https://tok123@github.com/org/repo.git"},
		{"http with token", "http://git.example.com/org/repo", "abc", "http://abc@git.example.com/org/repo"},
		{"replaces existing userinfo", "https://old@github.com/org/repo.git", "new", "https://new@github.com/org/repo.git"},
		{"empty token unchanged", "https://github.com/org/repo.git", "", "https://github.com/org/repo.git"},
		{"no scheme unchanged", "github.com/org/repo.git", "tok", "github.com/org/repo.git"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AuthURL(tt.url, tt.token))
		})
	}
}

func TestAuthURL_TokenBetweenSchemeAndHost(t *testing.T) {
	for _, raw := range []string{"https://example.com/org/repo.git", "https://gitlab.internal:8443/a/b/c.git"} {
		got := AuthURL(raw, "t0k")
		scheme, rest, ok := strings.Cut(got, "://")
		require.True(t, ok)
		assert.Equal(t, "https", scheme)
		assert.True(t, strings.HasPrefix(rest, "t0k@"), got)
		assert.Equal(t, strings.TrimPrefix(raw, "https://"), strings.TrimPrefix(rest, "t0k@"))
	}
}

func TestFetcher_RetryBound(t *testing.T) {
	const retries = 3
	for k := 0; k <= 5; k++ {
		t.Run(fmt.Sprintf("fails %d times", k), func(t *testing.T) {
			vcs := &fakeVCS{cloneFailures: k}
			var slept []time.Duration
			var retried []int
			f := &Fetcher{
				VCS:     vcs,
				Retries: retries,
				Backoff: 2 * time.Second,
				Sleep: func(_ context.Context, d time.Duration) error {
					slept = append(slept, d)
					return nil
				},
			}

			err := f.Fetch(context.Background(), "https://example.com/org/repo.git", "", t.TempDir()+"/repo",
				func(attempt int, _ error) { retried = append(retried, attempt) })

			wantCalls := min(k+1, retries)
			assert.Equal(t, wantCalls, vcs.cloneCount())
			assert.Len(t, slept, wantCalls-1)
			assert.Len(t, retried, wantCalls-1)
			for _, d := range slept {
				assert.Equal(t, 2*time.Second, d)
			}
			if k < retries {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFetcher_TokenNeverInError(t *testing.T) {
	vcs := &fakeVCS{cloneFailures: 10}
	f := &Fetcher{VCS: vcs, Retries: 2, Sleep: noSleep}

	err := f.Fetch(context.Background(), "https://example.com/org/repo.git", "supersecret", t.TempDir()+"/repo", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "supersecret")
	assert.Equal(t, "https://supersecret@example.com/org/repo.git", vcs.cloneURLs[0])
}

func TestFetcher_DefaultRetries(t *testing.T) {
	vcs := &fakeVCS{cloneFailures: 10}
	f := &Fetcher{VCS: vcs, Sleep: noSleep}

	require.Error(t, f.Fetch(context.Background(), "https://example.com/r.git", "", t.TempDir()+"/repo", nil))
	assert.Equal(t, DefaultCloneRetries, vcs.cloneCount())
}

func TestFetcher_StopsOnCancelledBackoff(t *testing.T) {
	vcs := &fakeVCS{cloneFailures: 10}
	ctx, cancel := context.WithCancel(context.Background())
	f := &Fetcher{VCS: vcs, Retries: 3, Backoff: time.Hour}

	cancel()
	err := f.Fetch(ctx, "https://example.com/r.git", "", t.TempDir()+"/repo", nil)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, vcs.cloneCount())
}
