package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/automaton-review/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-review/internal/redact"
)

const (
	defaultBinary     = "git"
	defaultPostBuffer = 524288000
)

// CLI implements analysis.VCS by shelling out to the git binary. Each call
// runs with an explicit working directory and never touches global config.
type CLI struct {
	Binary     string
	PostBuffer int64
	Depth      int
}

func NewCLI(binary string, postBuffer int64, depth int) *CLI {
	if binary == "" {
		binary = defaultBinary
	}
	if postBuffer <= 0 {
		postBuffer = defaultPostBuffer
	}
	return &CLI{Binary: binary, PostBuffer: postBuffer, Depth: depth}
}

var _ analysis.VCS = (*CLI)(nil)

// Clone makes a shallow clone of url into dir. url may carry credentials;
// they are scrubbed from any returned error.
func (c *CLI) Clone(ctx context.Context, url, dir string) error {
	args := []string{
		"-c", "http.postBuffer=" + strconv.FormatInt(c.PostBuffer, 10),
		"clone",
	}
	if c.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(c.Depth))
	}
	args = append(args, "--", url, dir)
	return c.run(ctx, "", args, url)
}

func (c *CLI) FetchRef(ctx context.Context, dir, remote, refspec string) error {
	return c.run(ctx, dir, []string{"fetch", remote, refspec}, "")
}

func (c *CLI) Checkout(ctx context.Context, dir, branch string) error {
	return c.run(ctx, dir, []string{"checkout", branch}, "")
}

// run executes git; secretURL, when set, is masked in the error text.
func (c *CLI) run(ctx context.Context, dir string, args []string, secretURL string) error {
	start := time.Now()
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	out, err := cmd.CombinedOutput()
	sub := subcommand(args)
	if err == nil {
		log.Debug().Str("git", sub).Dur("took", time.Since(start)).Msg("git command finished")
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	msg := strings.TrimSpace(string(out))
	if secretURL != "" {
		msg = strings.ReplaceAll(msg, secretURL, redact.URL(secretURL))
	}
	msg = redact.Secrets(msg)

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return fmt.Errorf("git %s: exit code %d: %s", sub, ee.ExitCode(), msg)
	}
	return fmt.Errorf("git %s: %w", sub, err)
}

func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-c" {
			i++
			continue
		}
		return args[i]
	}
	return ""
}
