package analysis

import (
	"context"
	"fmt"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

// BranchName is the local branch a pull request is checked out into.
func BranchName(prNumber int) string {
	return fmt.Sprintf("pr-%d", prNumber)
}

// Materializer fetches pull/<n>/head into pr-<n> and checks it out. Neither
// step is retried.
type Materializer struct {
	VCS    domain.VCS
	Remote string
}

func (m *Materializer) Materialize(ctx context.Context, dir string, prNumber int) error {
	remote := m.Remote
	if remote == "" {
		remote = "origin"
	}
	branch := BranchName(prNumber)
	refspec := fmt.Sprintf("pull/%d/head:%s", prNumber, branch)

	if err := m.VCS.FetchRef(ctx, dir, remote, refspec); err != nil {
		return fmt.Errorf("fetch %s: %w", refspec, err)
	}
	if err := m.VCS.Checkout(ctx, dir, branch); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	return nil
}
