package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

// fakeVCS clones by creating dir and materializes by writing files.
type fakeVCS struct {
	mu            sync.Mutex
	cloneFailures int
	cloneURLs     []string
	refspecs      []string
	branches      []string
	fetchErr      error
	checkoutErr   error
	files         map[string]string
}

func (f *fakeVCS) Clone(_ context.Context, url, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cloneURLs = append(f.cloneURLs, url)
	if len(f.cloneURLs) <= f.cloneFailures {
		return fmt.Errorf("fatal: unable to access '%s': connection reset", url)
	}
	return os.MkdirAll(dir, 0o755)
}

func (f *fakeVCS) FetchRef(_ context.Context, _ string, remote, refspec string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refspecs = append(f.refspecs, remote+" "+refspec)
	return f.fetchErr
}

func (f *fakeVCS) Checkout(_ context.Context, dir, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches = append(f.branches, branch)
	if f.checkoutErr != nil {
		return f.checkoutErr
	}
	for name, body := range f.files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeVCS) cloneCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cloneURLs)
}

// fakeLLM answers by prompt; the paired pathPrompt renders a file as its
// path, so responses are keyed by file name.
type fakeLLM struct {
	mu        sync.Mutex
	responses map[string]string
	err       error
	block     bool
	prompts   []string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	if r, ok := f.responses[prompt]; ok {
		return r, nil
	}
	return `{"results": {"issues": []}}`, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type pathPrompt struct{}

func (pathPrompt) Render(file domain.SourceFile) (string, error) {
	return file.Path, nil
}

// contentPrompt renders the file content, to observe what the model sees.
type contentPrompt struct{}

func (contentPrompt) Render(file domain.SourceFile) (string, error) {
	return file.Content, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestPipeline(vcs *fakeVCS, llm *fakeLLM, workRoot string) *Pipeline {
	return &Pipeline{
		Fetcher:      &Fetcher{VCS: vcs, Retries: 3, Sleep: noSleep},
		Materializer: &Materializer{VCS: vcs},
		Collector:    &Collector{Extension: ".py"},
		Analyzer:     &Analyzer{Client: llm, Prompt: pathPrompt{}},
		WorkRoot:     workRoot,
	}
}

const validResponse = `{"file_name": "good.py", "results": {"issues": [{"type": "bug", "line": 3, "description": "off by one", "suggestion": "use <="}]}}`
