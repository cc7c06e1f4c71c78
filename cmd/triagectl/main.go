// Command triagectl runs one-off maintenance tasks against the dispute store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dispute_triage/backend/internal/ai"
	"github.com/dispute_triage/backend/internal/config"
	"github.com/dispute_triage/backend/internal/db"
	"github.com/dispute_triage/backend/internal/models"
	"github.com/dispute_triage/backend/internal/service"
)

const usage = `usage: triagectl <command> [flags]

commands:
  migrate            apply schema migrations
  seed-disputes      insert the synthetic demo cases
  setup-specialists  create the ops and specialist groups and staff accounts
  classify           print the verdict for one dispute
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "triagectl").Logger()

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "migrate", "seed-disputes", "setup-specialists":
		err = withStore(ctx, cfg, func(store *db.Store) error {
			return runStoreCommand(ctx, cmd, store, logger)
		})
	case "classify":
		err = classify(ctx, cfg, args, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error().Err(err).Str("command", cmd).Msg("command failed")
		os.Exit(1)
	}
}

func withStore(ctx context.Context, cfg config.Config, fn func(*db.Store) error) error {
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func runStoreCommand(ctx context.Context, cmd string, store *db.Store, logger zerolog.Logger) error {
	switch cmd {
	case "migrate":
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
	case "seed-disputes":
		n, err := service.SeedDisputes(ctx, store)
		if err != nil {
			return err
		}
		logger.Info().Int("created", n).Msg("disputes seeded")
	case "setup-specialists":
		report, err := service.SetupSpecialists(ctx, store)
		if err != nil {
			return err
		}
		logger.Info().
			Strs("groups_created", report.GroupsCreated).
			Strs("users_created", report.UsersCreated).
			Int("memberships", report.Memberships).
			Msg("specialists ready")
	}
	return nil
}

func classify(ctx context.Context, cfg config.Config, args []string, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	text := fs.String("text", "", "dispute description")
	amount := fs.Float64("amount", 0, "disputed amount")
	category := fs.String("category", "Retail", "merchant category")
	heuristic := fs.Bool("heuristic", false, "skip the llm provider")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *text == "" {
		return fmt.Errorf("-text is required")
	}

	var provider ai.Provider
	if !*heuristic {
		if p, ok := ai.SelectProvider(cfg.Selection(nil)); ok {
			provider = ai.NewGuard(p, cfg.Guard())
		}
	}
	agent := ai.NewAgent(provider, logger, nil)
	v := agent.Analyze(ctx, ai.DisputeInput{Text: *text, Amount: *amount, Category: *category})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Source string `json:"source"`
		models.Verdict
	}{Source: v.Source, Verdict: v})
}
