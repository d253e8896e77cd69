package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/migration-sim/internal/config"
	"github.com/ehr/migration-sim/internal/domain/degradation"
	"github.com/ehr/migration-sim/internal/domain/hipaa"
	"github.com/ehr/migration-sim/internal/domain/migration"
	"github.com/ehr/migration-sim/internal/domain/monitor"
	"github.com/ehr/migration-sim/internal/domain/record"
	"github.com/ehr/migration-sim/internal/domain/scoring"
	"github.com/ehr/migration-sim/internal/platform/analytics"
	"github.com/ehr/migration-sim/internal/platform/reporting"
	"github.com/ehr/migration-sim/internal/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "migration-sim",
		Short: "Healthcare record migration quality simulator",
	}
	rootCmd.AddCommand(runCmd(), serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

type engine struct {
	cfg     *config.Config
	log     zerolog.Logger
	sim     *migration.Simulator
	mon     *monitor.Monitor
	rolling *analytics.Rolling
	gen     *record.Generator
}

// buildEngine wires the scorer, degradation simulator, monitor, HIPAA audit
// sink, orchestrator, and generator from configuration.
func buildEngine(cfg *config.Config) *engine {
	log := newLogger(cfg)

	scorer := scoring.NewScorer(scoring.DefaultRegistry(),
		log.With().Str("component", "scorer").Logger())
	degrader := degradation.NewSimulator(cfg.Seed, cfg.DegradationMagnitude)
	mon := monitor.New(scorer, nil, log.With().Str("component", "monitor").Logger())
	sink := hipaa.NewLogSink(log.With().Str("component", "hipaa-audit").Logger())

	sim := migration.NewSimulator(migration.Config{
		Rates:           cfg.Rates(),
		SubstageLatency: cfg.SubstageLatency(),
		Seed:            cfg.Seed,
	}, scorer, degrader, mon, sink, log.With().Str("component", "orchestrator").Logger())

	gen := record.NewGenerator(cfg.Seed, record.DefaultGeneratorConfig())

	return &engine{
		cfg:     cfg,
		log:     log,
		sim:     sim,
		mon:     mon,
		rolling: analytics.NewRolling(),
		gen:     gen,
	}
}

func runCmd() *cobra.Command {
	var (
		patients int
		batches  int
		seed     int64
		jsonOut  string
		csvOut   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run migration batches and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if patients > 0 {
				cfg.Patients = patients
			}
			if batches > 0 {
				cfg.Batches = batches
			}
			if seed != 0 {
				cfg.Seed = seed
			}

			eng := buildEngine(cfg)
			var last *migration.BatchResult
			for i := 0; i < cfg.Batches; i++ {
				snaps := eng.gen.GenerateBatch(cfg.Patients)
				last = eng.sim.SimulateBatch(snaps, "")
				eng.rolling.RecordBatch(last)
			}

			snap := eng.rolling.Snapshot()
			eng.log.Info().
				Int("batches", snap.Batches).
				Int("patients", snap.TotalPatients).
				Float64("average_quality", snap.AverageQuality).
				Float64("success_rate", snap.SuccessRate).
				Float64("compliance", snap.Compliance).
				Int("violations", snap.TotalViolations).
				Msg("simulation complete")

			if jsonOut != "" && last != nil {
				if err := writeReport(jsonOut, last, reporting.WriteBatchJSON); err != nil {
					return err
				}
			}
			if csvOut != "" && last != nil {
				if err := writeReport(csvOut, last, reporting.WriteBatchCSV); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&patients, "patients", 0, "patients per batch (overrides PATIENTS)")
	cmd.Flags().IntVar(&batches, "batches", 0, "number of batches (overrides BATCHES)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (overrides SEED)")
	cmd.Flags().StringVar(&jsonOut, "json", "", "write the last batch result to a JSON file")
	cmd.Flags().StringVar(&csvOut, "csv", "", "write the last batch report to a CSV file")
	return cmd
}

func writeReport(path string, res *migration.BatchResult,
	write func(io.Writer, *migration.BatchResult) error) error {

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	defer f.Close()
	return write(f, res)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			eng := buildEngine(cfg)

			srv := server.New(eng.sim, eng.mon, eng.rolling, eng.gen, eng.log)
			e := srv.Echo()

			go func() {
				eng.log.Info().Str("port", cfg.Port).Msg("dashboard server listening")
				if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
					eng.log.Fatal().Err(err).Msg("server failed")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			eng.log.Info().Msg("server stopped")
			return nil
		},
	}
}
