package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchName(t *testing.T) {
	assert.Equal(t, "pr-42", BranchName(42))
}

func TestMaterializer_FetchThenCheckout(t *testing.T) {
	vcs := &fakeVCS{}
	m := &Materializer{VCS: vcs}

	require.NoError(t, m.Materialize(context.Background(), t.TempDir(), 42))
	assert.Equal(t, []string{"origin pull/42/head:pr-42"}, vcs.refspecs)
	assert.Equal(t, []string{"pr-42"}, vcs.branches)
}

func TestMaterializer_FetchFailureSkipsCheckout(t *testing.T) {
	vcs := &fakeVCS{fetchErr: errors.New("couldn't find remote ref pull/7/head")}
	m := &Materializer{VCS: vcs, Remote: "upstream"}

	err := m.Materialize(context.Background(), t.TempDir(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pull/7/head")
	assert.Equal(t, []string{"upstream pull/7/head:pr-7"}, vcs.refspecs)
	assert.Empty(t, vcs.branches)
}

func TestMaterializer_CheckoutFailure(t *testing.T) {
	vcs := &fakeVCS{checkoutErr: errors.New("pathspec 'pr-3' did not match")}
	err := (&Materializer{VCS: vcs}).Materialize(context.Background(), t.TempDir(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkout pr-3")
}
