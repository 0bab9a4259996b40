package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	appanalysis "github.com/bryanwahyu/automaton-review/internal/application/analysis"
	"github.com/bryanwahyu/automaton-review/internal/bootstrap"
	"github.com/bryanwahyu/automaton-review/internal/config"
	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-review/internal/logging"
	"github.com/bryanwahyu/automaton-review/internal/redact"
)

func main() {
	app := &cli.App{
		Name:      "automaton-review-analyze",
		Usage:     "analyze one pull request and print the findings as JSON",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.yaml", EnvVars: []string{"CONFIG_PATH"}, Usage: "path to config.yaml"},
			&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Required: true, Usage: "repository clone URL"},
			&cli.IntFlag{Name: "pr", Required: true, Usage: "pull request number"},
			&cli.StringFlag{Name: "token", EnvVars: []string{"GITHUB_TOKEN"}, Usage: "access token for private repositories"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write JSON here instead of stdout"},
			&cli.BoolFlag{Name: "pretty", Usage: "human readable logs"},
		},
		Action: analyze,
	}
	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("analysis failed")
		os.Exit(1)
	}
}

func analyze(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty || c.Bool("pretty"))

	if c.Int("pr") <= 0 {
		return fmt.Errorf("--pr must be a positive integer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, closeModel, err := bootstrap.NewPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeModel()

	token := c.String("token")
	req := appanalysis.Request{
		JobID:    domain.JobID(uuid.NewString()),
		RepoURL:  c.String("repo"),
		PRNumber: c.Int("pr"),
		Token:    token,
	}
	report, err := pipeline.Run(ctx, req, appanalysis.Hooks{
		OnRetry: func(attempt int, err error) {
			log.Warn().Int("attempt", attempt).Str("error", redact.Token(err.Error(), token)).Msg("clone retry")
		},
	})
	if err != nil {
		return errors.New(redact.Token(err.Error(), token))
	}

	for _, o := range report.Outcomes {
		if o.Kind != domain.OutcomeOK {
			log.Warn().Str("file", o.File).Str("outcome", string(o.Kind)).Err(o.Err).Msg("model output not used as-is")
		}
	}
	log.Info().Int("collected", report.Collected).Int("dropped", report.Dropped()).Msg("analysis finished")

	out := os.Stdout
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	analyses := report.Analyses
	if analyses == nil {
		analyses = []domain.FileAnalysis{}
	}
	return enc.Encode(analyses)
}
