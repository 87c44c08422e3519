package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/givance/webserver-sub009/internal/app"
	"github.com/givance/webserver-sub009/internal/util"
	"github.com/givance/webserver-sub009/pkg/analysis"
	"github.com/givance/webserver-sub009/pkg/journey"
	"github.com/givance/webserver-sub009/pkg/store"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	util.LoadEnv()
	app.InitLogger("journeyctl")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "journeyctl",
		Short:        "Operate donor journeys and lifecycle analysis",
		Version:      Version,
		SilenceUsage: true,
	}
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(journeyCmd())
	cmd.AddCommand(analyzeCmd())
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.LoadConfig()
			return app.Migrate(cfg.DatabaseURL, cfg.MigrationsPath)
		},
	}
}

func journeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journey",
		Short: "Generate or inspect an organization's donor journey",
	}
	cmd.AddCommand(journeyGenerateCmd())
	cmd.AddCommand(journeyShowCmd())
	return cmd
}

func journeyGenerateCmd() *cobra.Command {
	var orgID, file string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a journey from a text description and store it",
		RunE: func(cmd *cobra.Command, args []string) error {
			description, err := readDescription(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), app.LoadConfig())
			if err != nil {
				return err
			}
			defer a.Close()
			defer app.LogAIMetrics(a.AI)

			var journeys store.JourneyStore = a.Store
			if dryRun {
				journeys = nil
			}
			return generateJourney(cmd.Context(), cmd.OutOrStdout(), a.Generator, journeys, orgID, description)
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization id")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Description file, - for stdin")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the generated journey without storing it")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func journeyShowCmd() *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored journey",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), app.LoadConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			graph, err := a.Store.GetDonorJourneyGraph(cmd.Context(), orgID)
			if err != nil {
				return err
			}
			if graph == nil {
				return fmt.Errorf("%w: %s", analysis.ErrJourneyNotFound, orgID)
			}
			return printJSON(cmd.OutOrStdout(), graph)
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization id")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var orgID, userID string

	cmd := &cobra.Command{
		Use:   "analyze [donor-id...]",
		Short: "Run the lifecycle analysis for donors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), app.LoadConfig())
			if err != nil {
				return err
			}
			defer a.Close()
			defer app.LogAIMetrics(a.AI)

			result, err := a.Orchestrator.AnalyzeDonors(cmd.Context(), args, orgID, userID)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if result.ErrorCount > 0 {
				return fmt.Errorf("%d of %d donors failed", result.ErrorCount, len(result.Results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization id")
	cmd.Flags().StringVar(&userID, "user", "journeyctl", "Requesting user id")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

type journeyGenerator interface {
	Generate(ctx context.Context, description string) (*journey.Graph, error)
}

// generateJourney prints the generated graph and stores it unless journeys is
// nil. A blank description stores an empty journey.
func generateJourney(
	ctx context.Context,
	w io.Writer,
	gen journeyGenerator,
	journeys store.JourneyStore,
	orgID string,
	description string,
) error {
	graph, err := gen.Generate(ctx, description)
	if err != nil {
		return err
	}
	if journeys != nil {
		if err := journeys.ReplaceDonorJourneyGraph(ctx, orgID, description, graph); err != nil {
			return err
		}
	}
	return printJSON(w, graph)
}

func readDescription(stdin io.Reader, file string) (string, error) {
	if file == "" || file == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read description: %w", err)
	}
	return string(b), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
