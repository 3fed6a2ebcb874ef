// Command mediawatchd runs the full media-monitoring pipeline as one
// process: C2 ingestion (tailer + scheduler), C3 the dedup writer sitting
// behind it, C4 the analysis dispatcher, and the two C5 tick engines
// (issues, aggregate). Collector/dataset adapters are registered by
// deployment-specific code, not this binary (§1 Non-goals).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clariona/mediawatch/internal/aggregate"
	"github.com/clariona/mediawatch/internal/analysis"
	"github.com/clariona/mediawatch/internal/classify"
	"github.com/clariona/mediawatch/internal/config"
	"github.com/clariona/mediawatch/internal/dedup"
	"github.com/clariona/mediawatch/internal/ingest"
	"github.com/clariona/mediawatch/internal/issues"
	"github.com/clariona/mediawatch/internal/location"
	"github.com/clariona/mediawatch/internal/ratelimit"
	"github.com/clariona/mediawatch/internal/store/mysql"
	"github.com/clariona/mediawatch/internal/telemetry"
	"github.com/clariona/mediawatch/internal/topics"
)

var (
	dsn            string
	configPath     string
	locationsPath  string
	envPrefix      string
	anthropicModel string
)

func main() {
	root := &cobra.Command{
		Use:   "mediawatchd",
		Short: "Run the media-monitoring ingestion, analysis, and issue/aggregation engines",
		RunE:  run,
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("MEDIAWATCH_DSN"), "MySQL DSN (go-sql-driver/mysql format)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file layered under env overrides")
	root.PersistentFlags().StringVar(&locationsPath, "locations", "", "path to the YAML country/keyword table for Phase L (optional)")
	root.PersistentFlags().StringVar(&envPrefix, "env-prefix", "MEDIAWATCH", "environment variable prefix for config overrides")
	root.PersistentFlags().StringVar(&anthropicModel, "model", "claude-haiku-4-5", "Anthropic model used for classifier calls")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if dsn == "" {
		return fmt.Errorf("mediawatchd: --dsn (or MEDIAWATCH_DSN) is required")
	}

	shutdownTelemetry, err := telemetry.Init(context.Background(), os.Stdout)
	if err != nil {
		return fmt.Errorf("mediawatchd: telemetry init: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader, err := config.NewFileStore(configPath, envPrefix)
	if err != nil {
		return fmt.Errorf("mediawatchd: config: %w", err)
	}

	db, err := mysql.Open(ctx, dsn, log)
	if err != nil {
		return fmt.Errorf("mediawatchd: store: %w", err)
	}
	defer db.Close()
	reader.AttachStore(db)

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	bank := ratelimit.NewBank(reader.GetInt("processing.rate_limit.default_tpm"))
	classifier, err := classify.NewAnthropicClassifier(apiKey, anthropicModel, bank)
	if err != nil {
		return fmt.Errorf("mediawatchd: classifier: %w", err)
	}

	var locator *location.Classifier
	if locationsPath != "" {
		locator, err = loadLocator(locationsPath)
		if err != nil {
			return fmt.Errorf("mediawatchd: locations: %w", err)
		}
	}

	linker := issues.NewLinker(db)
	pipeline := analysis.NewPipeline(
		classifier,
		db,
		linker,
		locator,
		analysis.SentimentThresholds{
			Positive: reader.GetFloat("processing.sentiment.positive_threshold"),
			Negative: reader.GetFloat("processing.sentiment.negative_threshold"),
		},
		topics.Thresholds{
			MinScore:       reader.GetFloat("processing.topic.min_score_threshold"),
			Confidence:     reader.GetFloat("processing.topic.confidence_threshold"),
			KeywordScore:   reader.GetFloat("processing.topic.keyword_score_threshold"),
			EmbeddingScore: reader.GetFloat("processing.topic.embedding_score_threshold"),
		},
	)

	dispatcherOpts := analysis.DefaultOptions()
	dispatcherOpts.PollInterval = time.Duration(reader.GetInt("processing.poll_interval_seconds")) * time.Second
	dispatcherOpts.BatchSize = reader.GetInt("processing.parallel.batch_size")
	dispatcherOpts.MaxWorkers = reader.GetInt("processing.parallel.max_workers")
	dispatcherOpts.ClassifierTimeout = time.Duration(reader.GetInt("processing.timeouts.classifier_seconds")) * time.Second
	dispatcherOpts.StaleAfter = time.Duration(reader.GetInt("processing.timeouts.stale_claim_seconds")) * time.Second
	dispatcher := analysis.NewDispatcher(db, pipeline, dispatcherOpts, log)

	issuesOpts := issues.EngineOptions{
		ClusterSimilarity:  reader.GetFloat("processing.issues.cluster_similarity"),
		MinClusterSize:     reader.GetInt("processing.issues.min_cluster_size"),
		TimeWindow:         time.Duration(reader.GetInt("processing.issues.time_window_hours")) * time.Hour,
		MatchThreshold:     reader.GetFloat("processing.issues.match_threshold"),
		VolumeSaturation:   reader.GetInt("processing.issues.volume_saturation"),
		ResolvedInactivity: time.Duration(reader.GetInt("processing.issues.resolved_inactivity_hours")) * time.Hour,
		TickInterval:       time.Duration(reader.GetInt("processing.issues.tick_interval_seconds")) * time.Second,
	}
	issueEngine := issues.NewEngine(db, db, db, db, classifier, issuesOpts, log)

	aggregateOpts := aggregate.EngineOptions{
		TickInterval:   15 * time.Minute,
		BaselinePeriod: time.Duration(reader.GetInt("processing.aggregation.baseline_period_days")) * 24 * time.Hour,
	}
	aggregateEngine := aggregate.NewEngine(db, db, db, db, aggregateOpts, log)

	dedupWriter := dedup.New(db, dedup.Options{
		DupWindow:           time.Duration(reader.GetInt("deduplication.dup_window_hours")) * time.Hour,
		SimilarityThreshold: reader.GetFloat("deduplication.similarity_threshold"),
		ShortTextLength:     10,
	})
	sink := ingest.NewNormalizingSink(dedupWriter, log)
	scheduler := ingest.NewScheduler(sink, reader.GetInt("processing.max_collector_workers"), log)
	// Deployment-specific code registers datasets/collectors here, e.g.:
	//   scheduler.Register(myTwitterCollector, ingest.SourcePolicy{...})
	// Tailers for long-lived datasets are started the same way, one Run
	// goroutine per ingest.NewTailer(...).

	log.Info("mediawatchd: starting")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); dispatcher.Run(ctx) }()
	go func() { defer wg.Done(); issueEngine.Run(ctx) }()
	go func() { defer wg.Done(); aggregateEngine.Run(ctx) }()

	go scheduler.Run(ctx, 5*time.Second)

	<-ctx.Done()
	log.Info("mediawatchd: shutdown signal received, draining")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(reader.GetInt("processing.timeouts.shutdown_grace_seconds"))*time.Second)
	defer cancel()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Warn("mediawatchd: telemetry shutdown", "error", err)
	}

	log.Info("mediawatchd: stopped")
	return nil
}

// loadLocator reads a YAML list of {name, keywords: [{keyword, weight}]}
// entries into Phase L's country table. This table is administrative data
// (like topic keywords), not a config.Reader dot-notation key.
func loadLocator(path string) (*location.Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Name     string `yaml:"name"`
		Keywords []struct {
			Keyword string  `yaml:"keyword"`
			Weight  float64 `yaml:"weight"`
		} `yaml:"keywords"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	countries := make([]location.Country, 0, len(raw))
	for _, r := range raw {
		kws := make([]location.KeywordWeight, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kws = append(kws, location.KeywordWeight{Keyword: kw.Keyword, Weight: kw.Weight})
		}
		countries = append(countries, location.Country{Name: r.Name, Keywords: kws})
	}
	return location.New(countries), nil
}
