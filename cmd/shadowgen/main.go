package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shadow-it-generator/internal/config"
	"shadow-it-generator/internal/factory"
	"shadow-it-generator/internal/handler"
	"shadow-it-generator/internal/model"
	"shadow-it-generator/internal/util"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.LoadConfig()

	root := &cobra.Command{
		Use:          "shadowgen",
		Short:        "Generate synthetic enterprise web proxy logs with shadow IT activity",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&cfg.Generator.EnterpriseFile, "config", "c", cfg.Generator.EnterpriseFile, "enterprise YAML file")
	flags.StringVar(&cfg.Generator.ServicesPath, "services", cfg.Generator.ServicesPath, "service catalog file or directory (empty uses the built-in catalog)")
	flags.StringVar(&cfg.Generator.JunkCatalogFile, "junk-catalog", cfg.Generator.JunkCatalogFile, "junk site catalog file (empty uses the built-in catalog)")

	root.AddCommand(newGenerateCmd(cfg), newValidateCmd(cfg))
	return root
}

func newGenerateCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Simulate the configured window and write LEEF/CEF logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Output.Directory, "output", "o", cfg.Output.Directory, "output directory")
	flags.Uint64Var(&cfg.Generator.Seed, "seed", cfg.Generator.Seed, "random seed")
	flags.StringVar(&cfg.Generator.StartDate, "start", cfg.Generator.StartDate, "first simulated date (YYYY-MM-DD)")
	flags.StringVar(&cfg.Generator.EndDate, "end", cfg.Generator.EndDate, "last simulated date, inclusive (YYYY-MM-DD)")
	flags.IntVar(&cfg.Generator.Days, "days", cfg.Generator.Days, "days to simulate when no end date is given")
	flags.StringSliceVar(&cfg.Output.Formats, "formats", cfg.Output.Formats, "output formats (leef, cef)")
	flags.IntVar(&cfg.Generator.Workers, "workers", cfg.Generator.Workers, "parallel user generation workers")
	flags.BoolVar(&cfg.Output.Compress, "compress", cfg.Output.Compress, "gzip finished log files")
	flags.StringVar(&cfg.Output.Rotation, "rotation", cfg.Output.Rotation, "file rotation (daily, hourly)")
	flags.StringVar(&cfg.Status.Addr, "status-addr", cfg.Status.Addr, "serve health, metrics and status on this address")
	return cmd
}

func runGenerate(ctx context.Context, cfg *config.Config) error {
	f, err := factory.New(cfg)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var server *http.Server
	if cfg.Status.Addr != "" {
		server = &http.Server{
			Addr:         cfg.Status.Addr,
			Handler:      handler.NewRouter(f.Engine(), f.Registry(), util.Get()),
			ReadTimeout:  cfg.Status.ReadTimeout,
			WriteTimeout: cfg.Status.WriteTimeout,
		}
		go func() {
			util.Info("Starting status server", util.String("addr", cfg.Status.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				util.Error("Status server failed", util.ErrorField(err))
			}
		}()
	}

	began := time.Now()
	summary, runErr := f.Engine().Run(ctx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			util.Error("Status server shutdown failed", util.ErrorField(err))
		}
		cancel()
	}

	closeErr := f.Close()

	util.Info("Run finished",
		util.Int("hours", summary.Hours),
		util.Int("events", summary.Events),
		util.Int("lines", summary.Lines),
		util.Int("files", len(f.FinishedFiles())),
		util.Duration("elapsed", time.Since(began)))

	if errors.Is(runErr, context.Canceled) {
		util.Warn("Generation stopped by signal; output up to the last complete hour was kept")
		return nil
	}
	return errors.Join(runErr, closeErr)
}

func newValidateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the enterprise config and catalogs and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
			inputs, err := factory.LoadInputs(cfg.Generator)
			if err != nil {
				return err
			}
			start, end, err := factory.ResolveWindow(cfg.Generator, inputs.Enterprise, time.Now())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), inputs, start, end)
			return nil
		},
	}
}

func printSummary(w io.Writer, in *factory.Inputs, start, end time.Time) {
	ent := in.Enterprise
	fmt.Fprintf(w, "Enterprise:  %s (%s)\n", ent.Enterprise.Name, ent.Enterprise.Domain)
	fmt.Fprintf(w, "Users:       %d\n", ent.Enterprise.TotalUsers)
	fmt.Fprintf(w, "Timezone:    %s\n", ent.Location())
	fmt.Fprintf(w, "Window:      %s to %s\n", start.Format(time.RFC3339), end.Format(time.RFC3339))

	fmt.Fprintln(w, "Profiles:")
	for _, p := range ent.Profiles {
		fmt.Fprintf(w, "  %-14s %5.1f%%  stance=%s\n", p.Name, p.Percentage*100, p.EffectiveStance())
	}

	fmt.Fprintf(w, "Services:    %d (sanctioned %d, unsanctioned %d, blocked %d)\n",
		in.Services.Len(),
		in.Services.CountByStatus(model.StatusSanctioned),
		in.Services.CountByStatus(model.StatusUnsanctioned),
		in.Services.CountByStatus(model.StatusBlocked))

	if ent.Junk.IsEnabled() {
		names := make([]string, 0, len(in.Junk.Categories))
		for _, c := range in.Junk.Categories {
			names = append(names, c.Name)
		}
		sort.Strings(names)
		fmt.Fprintf(w, "Junk:        %.0f/user/day over %s\n", ent.Junk.RequestsPerUserPerDay.Mean, strings.Join(names, ", "))
	} else {
		fmt.Fprintln(w, "Junk:        disabled")
	}
}
