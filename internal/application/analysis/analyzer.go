package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-review/internal/domain/ai"
	"github.com/bryanwahyu/automaton-review/internal/redact"
)

// PromptRenderer builds the prompt sent for one file.
type PromptRenderer interface {
	Render(file domain.SourceFile) (string, error)
}

// Analyzer calls the model once per file, sequentially, and classifies each
// response as ok, unparseable or malformed.
type Analyzer struct {
	Client ai.Client
	Prompt PromptRenderer

	// StrictSchema drops malformed outcomes from the result list.
	StrictSchema bool
	// RepairJSON runs a repair pass before declaring a response unparseable.
	RepairJSON bool
	// RedactSecrets scrubs credentials from file content before prompting.
	RedactSecrets bool
}

// Analyze returns one Outcome per file, in input order. A model transport
// error aborts the run and is returned; parse failures never are.
func (a *Analyzer) Analyze(ctx context.Context, jobID domain.JobID, files []domain.SourceFile) ([]domain.Outcome, error) {
	logger := log.With().Str("job_id", string(jobID)).Logger()
	outcomes := make([]domain.Outcome, 0, len(files))

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		in := f
		if a.RedactSecrets {
			in.Content = redact.Secrets(in.Content)
		}
		p, err := a.Prompt.Render(in)
		if err != nil {
			return outcomes, err
		}

		raw, err := a.Client.Complete(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return outcomes, ctx.Err()
			}
			return outcomes, fmt.Errorf("analyze %s: model call failed: %w", f.Path, err)
		}

		out := a.classify(f.Path, raw)
		switch out.Kind {
		case domain.OutcomeUnparseable:
			logger.Warn().Str("file", f.Path).Msg("dropping unparseable model response")
		case domain.OutcomeMalformed:
			logger.Warn().Str("file", f.Path).Err(out.Err).Msg("model response does not match schema")
		default:
			logger.Debug().Str("file", f.Path).Int("issues", len(out.Analysis.Issues)).Msg("file analyzed")
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (a *Analyzer) classify(file, raw string) domain.Outcome {
	fa, err := ParseResponse(file, raw, a.RepairJSON)
	switch {
	case err == nil:
		return domain.Outcome{File: file, Kind: domain.OutcomeOK, Analysis: fa}
	case errors.Is(err, ErrUnparseable):
		return domain.Outcome{File: file, Kind: domain.OutcomeUnparseable, Raw: raw, Err: err}
	default:
		return domain.Outcome{File: file, Kind: domain.OutcomeMalformed, Analysis: fa, Raw: raw, Err: err}
	}
}

// Retained picks the analyses that enter the job result.
func (a *Analyzer) Retained(outcomes []domain.Outcome) []domain.FileAnalysis {
	out := make([]domain.FileAnalysis, 0, len(outcomes))
	for _, o := range outcomes {
		switch o.Kind {
		case domain.OutcomeOK:
			out = append(out, *o.Analysis)
		case domain.OutcomeMalformed:
			if !a.StrictSchema {
				out = append(out, *o.Analysis)
			}
		}
	}
	return out
}
