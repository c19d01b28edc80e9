package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"sentinel/internal/config"
	"sentinel/internal/export"
	"sentinel/internal/models"
	"sentinel/internal/storage"
)

var (
	eventType = flag.String("type", "", "Event type to export")
	severity  = flag.String("severity", "", "Severity to export (low, medium, high, critical)")
	source    = flag.String("source", "", "Source to export")
	userID    = flag.String("user", "", "User ID to export")
	ipHash    = flag.String("ip-hash", "", "Client IP hash to export")
	since     = flag.String("since", "24h", "Start of range: RFC3339 time or a duration back from now")
	until     = flag.String("until", "", "End of range: RFC3339 time or a duration back from now")
	limit     = flag.Int("limit", 1000, "Maximum number of events")
	output    = flag.String("out", "", "Write the snapshot to this file")
	toS3      = flag.Bool("s3", false, "Upload the snapshot to the configured S3 bucket")
	quiet     = flag.Bool("quiet", false, "Do not print the summary table")
)

func main() {
	flag.Parse()
	config.LoadDotEnv()

	filter, err := buildFilter(time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	writers, err := buildWriters(ctx, cfg.Export)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	dbConfig := storage.DefaultDBConfig()
	dbConfig.DSN = cfg.Database.URL
	dbConfig.MaxOpenConns = 2
	dbConfig.MaxIdleConns = 1
	dbConfig.APIKeyCacheSize = 10

	db, err := storage.NewDB(dbConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	events, err := db.NewEventRepository().List(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to query events: %v\n", err)
		os.Exit(1)
	}

	snap := export.NewSnapshot(filter, events, time.Now())
	if !*quiet {
		printSummary(os.Stdout, snap.Summary)
	}

	for _, w := range writers {
		location, err := w.Write(ctx, snap)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Snapshot written to %s\n", location)
	}
}

func buildFilter(now time.Time) (models.EventFilter, error) {
	filter := models.EventFilter{
		EventType: models.EventType(*eventType),
		Severity:  models.Severity(*severity),
		Source:    *source,
		UserID:    *userID,
		IPHash:    *ipHash,
		Limit:     *limit,
	}

	if filter.EventType != "" && !filter.EventType.IsValid() {
		return filter, fmt.Errorf("unknown event type %q", *eventType)
	}
	if filter.Severity != "" && !filter.Severity.IsValid() {
		return filter, fmt.Errorf("unknown severity %q", *severity)
	}
	if filter.Limit < 1 {
		return filter, fmt.Errorf("limit must be positive")
	}

	var err error
	if filter.Since, err = parseBound(*since, now); err != nil {
		return filter, fmt.Errorf("invalid -since: %w", err)
	}
	if filter.Until, err = parseBound(*until, now); err != nil {
		return filter, fmt.Errorf("invalid -until: %w", err)
	}
	return filter, nil
}

// parseBound accepts an RFC3339 time or a duration subtracted from now.
// Empty means unbounded.
func parseBound(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(-d), nil
	}
	return time.Parse(time.RFC3339, v)
}

func buildWriters(ctx context.Context, cfg config.ExportConfig) ([]export.Writer, error) {
	var writers []export.Writer
	if *output != "" {
		writers = append(writers, export.NewFileWriter(*output))
	}
	if *toS3 {
		w, err := export.NewS3Writer(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix, cfg.PodName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 writer: %w", err)
		}
		writers = append(writers, w)
	}
	return writers, nil
}

func printSummary(out io.Writer, s export.Summary) {
	fmt.Fprintf(out, "Events: %d\n", s.Total)
	if s.First != nil && s.Last != nil {
		fmt.Fprintf(out, "Range:  %s .. %s\n", s.First.Format(time.RFC3339), s.Last.Format(time.RFC3339))
	}
	if s.Total == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nTYPE\tCOUNT")
	for _, tc := range s.TopTypes {
		fmt.Fprintf(w, "%s\t%d\n", tc.EventType, tc.Count)
	}

	fmt.Fprintln(w, "\nSEVERITY\tCOUNT")
	for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow} {
		if n := s.BySeverity[sev]; n > 0 {
			fmt.Fprintf(w, "%s\t%d\n", sev, n)
		}
	}

	fmt.Fprintln(w, "\nSOURCE\tCOUNT")
	sources := make([]string, 0, len(s.BySource))
	for src := range s.BySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		fmt.Fprintf(w, "%s\t%d\n", src, s.BySource[src])
	}
	w.Flush()
}
