package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/helpdesk-datagen/internal/dto"
	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/internal/repository"
	"github.com/noah-isme/helpdesk-datagen/internal/service"
	"github.com/noah-isme/helpdesk-datagen/pkg/config"
	"github.com/noah-isme/helpdesk-datagen/pkg/logger"
	"github.com/noah-isme/helpdesk-datagen/pkg/storage"
)

type options struct {
	tickets    int
	seed       int64
	seedSet    bool
	output     string
	pdf        bool
	dataDir    string
	profiles   string
	issueToken string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "datagen:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts, err := parseFlags(args, cfg)
	if err != nil {
		return err
	}

	if opts.issueToken != "" {
		tokens := service.NewTokenService(cfg.Auth.Secret, "helpdesk-datagen", 24*time.Hour)
		token, expiresAt, err := tokens.Issue(opts.issueToken, service.ScopeRunsRead, service.ScopeRunsWrite)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Fprintf(stdout, "%s\nexpires %s\n", token, expiresAt.Format(time.RFC3339))
		return nil
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	seeds := repository.NewSeedDataRepository(opts.dataDir, logr)
	generator := service.NewGenerationService(cfg.Generation, seeds, opts.profiles, nil, nil, logr)

	req := dto.GenerateRequest{Tickets: opts.tickets, IncludePDF: opts.pdf}
	if opts.seedSet {
		req.Seed = &opts.seed
	}
	result, err := generator.Generate(ctx, req)
	if err != nil {
		return err
	}

	files, err := storage.NewLocalStorage(opts.output)
	if err != nil {
		return err
	}
	exporter := service.NewExportService(files, nil, service.ExportConfig{}, logr, nil, nil)
	artifacts, err := exporter.Export(ctx, "", result, opts.pdf)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	logr.Info("dataset written",
		zap.Int64("seed", result.Seed),
		zap.Int("tickets", len(result.Tickets)),
		zap.Int("time_entries", len(result.TimeEntries)),
		zap.String("output", opts.output),
	)
	return printSummary(stdout, result, artifacts, files)
}

func parseFlags(args []string, cfg *config.Config) (options, error) {
	opts := options{}
	fs := pflag.NewFlagSet("datagen", pflag.ContinueOnError)
	fs.IntVarP(&opts.tickets, "tickets", "n", 100, "number of tickets to generate (1-10000)")
	fs.Int64Var(&opts.seed, "seed", 0, "random seed; omit for a clock-derived seed")
	fs.StringVarP(&opts.output, "output", "o", cfg.Data.OutputDir, "directory for CSV and PDF artifacts")
	fs.BoolVar(&opts.pdf, "pdf", false, "also render the technician summary PDF")
	fs.StringVar(&opts.dataDir, "data-dir", cfg.Data.SeedDir, "directory holding the seed CSV lists")
	fs.StringVar(&opts.profiles, "profiles", cfg.Data.ProfilesFile, "probability profile document (JSON or YAML)")
	fs.StringVar(&opts.issueToken, "issue-token", "", "print an API bearer token for this subject and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.seedSet = fs.Changed("seed")
	return opts, nil
}

// diagnosticLines renders diagnostic counts ordered by kind.
func diagnosticLines(counts map[models.DiagnosticKind]int) []string {
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	lines := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		lines = append(lines, fmt.Sprintf("  %s: %d", kind, counts[models.DiagnosticKind(kind)]))
	}
	return lines
}

func printSummary(w io.Writer, result *service.GenerationResult, artifacts models.ArtifactList, files *storage.LocalStorage) error {
	summary := result.Summary()
	fmt.Fprintf(w, "seed %d: %d tickets, %d time entries\n", result.Seed, summary.Tickets, summary.TimeEntries)
	for _, line := range diagnosticLines(summary.Diagnostics) {
		fmt.Fprintln(w, line)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TECH\tPROFILE\tTOTAL\tRESOLVED\tOPEN/PENDING")
	for _, row := range result.Stats {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", row.Tech, row.Profile, row.Total, row.Resolved, row.OpenOrPending)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, a := range artifacts {
		fmt.Fprintln(w, files.Path(a.RelativePath))
	}
	return nil
}
