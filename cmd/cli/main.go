package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/finance-analytics/internal/analytics"
	"github.com/dvloznov/finance-analytics/internal/app"
	"github.com/dvloznov/finance-analytics/internal/config"
	"github.com/dvloznov/finance-analytics/internal/logger"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "backfill":
		runBackfill(log)
	case "insights":
		runInsights(log)
	case "summary":
		runSummary(log)
	case "archive":
		runArchive(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Analytics CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  backfill  Enrich a user's existing transactions")
	fmt.Println("  insights  Print a user's insights, regenerating them on request")
	fmt.Println("  summary   Print a user's income, expenses and top categories")
	fmt.Println("  archive   Print an archived raw insight response")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// open loads configuration and assembles the application.
func open(ctx context.Context, log zerolog.Logger, configPath string) *app.App {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	return a
}

func runBackfill(log zerolog.Logger) {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("FINANCE_CONFIG"), "Path to a YAML config file")
	userID := fs.String("user", "", "User ID to backfill")
	ids := fs.String("ids", "", "Comma-separated transaction IDs (default: all of the user's transactions)")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := open(ctx, log, *configPath)
	defer a.Close()

	var transactionIDs []string
	if *ids != "" {
		for _, id := range strings.Split(*ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				transactionIDs = append(transactionIDs, id)
			}
		}
	}

	result, err := a.Enrichment.Backfill(ctx, *userID, transactionIDs)
	if err != nil {
		log.Fatal().Err(err).Msg("Backfill failed")
	}

	fmt.Printf("Backfill for %s: %d enriched, %d skipped, %d failed of %d\n",
		*userID, result.EnrichedCount, result.SkippedCount, result.FailedCount, result.TotalCount)
}

func runInsights(log zerolog.Logger) {
	fs := flag.NewFlagSet("insights", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("FINANCE_CONFIG"), "Path to a YAML config file")
	userID := fs.String("user", "", "User ID")
	force := fs.Bool("force", false, "Bypass the insight cache")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a := open(ctx, log, *configPath)
	defer a.Close()

	result, err := a.Insights.GetInsights(ctx, *userID, *force)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load insights")
	}

	fmt.Printf("\n=== Insights for %s (cached: %t, generated %s) ===\n",
		*userID, result.Cached, result.GeneratedAt.Format(time.RFC3339))
	for i, in := range result.Insights {
		fmt.Printf("\n%d. [%s/%s] %s\n", i+1, in.Type, in.Severity, in.Title)
		fmt.Printf("   %s\n", in.Message)
	}
	fmt.Println()
}

func runSummary(log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("FINANCE_CONFIG"), "Path to a YAML config file")
	userID := fs.String("user", "", "User ID")
	startStr := fs.String("start", "", "Start date YYYY-MM-DD")
	endStr := fs.String("end", "", "End date YYYY-MM-DD (inclusive)")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	start, err := parseDate(*startStr, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --start")
	}
	end, err := parseDate(*endStr, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --end")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a := open(ctx, log, *configPath)
	defer a.Close()

	summary, err := a.Analytics.IncomeVsExpense(ctx, *userID, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute summary")
	}
	breakdown, err := a.Analytics.CategoryBreakdown(ctx, *userID, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute category breakdown")
	}

	fmt.Printf("\n=== Summary for %s ===\n", *userID)
	fmt.Printf("Income:       %.2f\n", summary.Income)
	fmt.Printf("Expenses:     %.2f\n", summary.Expenses)
	fmt.Printf("Savings:      %.2f\n", summary.Savings)
	fmt.Printf("Savings rate: %.2f%% (%s)\n", summary.SavingsRate, analytics.FinancialHealth(summary.SavingsRate))

	fmt.Printf("\n=== Expenses by category ===\n")
	for _, c := range breakdown.Categories {
		fmt.Printf("  %-24s %10.2f  %6.2f%%  (%d)\n", c.Category, c.TotalAmount, c.Percentage, c.TransactionCount)
	}
	fmt.Println()
}

func runArchive(log zerolog.Logger) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("FINANCE_CONFIG"), "Path to a YAML config file")
	uri := fs.String("uri", "", "gs:// URI of an archived response")
	fs.Parse(os.Args[2:])

	if *uri == "" {
		log.Fatal().Msg("Error: --uri is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a := open(ctx, log, *configPath)
	defer a.Close()

	if a.Archive == nil {
		log.Fatal().Msg("gcs.archive_bucket is not configured")
	}

	raw, err := a.Archive.Fetch(ctx, *uri)
	if err != nil {
		log.Fatal().Err(err).Str("uri", *uri).Msg("Failed to fetch archived response")
	}
	os.Stdout.Write(raw)
	fmt.Println()
}

func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t, nil
}
