package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"driftstream/internal/cfg"
	"driftstream/internal/detector"
	"driftstream/internal/ensemble"
	"driftstream/internal/journal"
	"driftstream/internal/learner"
	"driftstream/internal/member"
	"driftstream/internal/metrics"
	"driftstream/internal/stream"
	"driftstream/internal/topology"
	"driftstream/internal/window"
)

const detectorMinSeen = 30

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	jnl := initializeJournal(c)
	if jnl != nil {
		defer jnl.Close()
	}

	ens, err := buildEnsemble(c, m, jnl)
	if err != nil {
		log.Fatal().Err(err).Msg("ensemble construction failed")
	}
	defer ens.Close()

	startMetricsServer(ctx, c, cancel)

	examples := make(chan learner.Example, 64)
	errs := make(chan error, 32)

	source, err := buildSource(c)
	if err != nil {
		log.Fatal().Err(err).Msg("stream source construction failed")
	}
	go func() {
		if err := source.Stream(ctx, examples, errs); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("stream source stopped")
		}
		close(examples)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	runTrainingLoop(ctx, ens, m, examples, errs, sig, cancel)

	log.Info().
		Int64("instances", ens.Instances()).
		Float64("accuracy", ens.Accuracy()).
		Int("history_size", ens.History().Size()).
		Msg("shutting down")
}

func initializeJournal(c cfg.Settings) *journal.Journal {
	if c.DataPath == "" {
		return nil
	}
	if err := os.MkdirAll(c.DataPath, 0o755); err != nil {
		log.Warn().Err(err).Msg("failed to create data path, journaling disabled")
		return nil
	}
	jnl, err := journal.Open(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("failed to open event journal, journaling disabled")
		return nil
	}
	log.Info().Str("path", c.DataPath).Msg("event journal enabled")
	return jnl
}

func buildEnsemble(c cfg.Settings, m *metrics.Metrics, jnl *journal.Journal) (*ensemble.Coordinator, error) {
	ensCfg := ensembleConfig(c)

	var grouper topology.Grouper
	if c.UseGrouping {
		grouper = topology.NewCentroidGrouper(c.GroupRadius)
	}

	emit := func(ev member.Event) {
		m.ObserveEvent(ev)
		if jnl != nil {
			if err := jnl.Record(ev); err != nil {
				log.Warn().Err(err).Msg("failed to journal event")
			}
		}
	}

	return ensemble.New(
		ensCfg,
		learner.NewNaiveBayes(c.ClassCount, c.FeatureCount),
		detector.NewDDM(c.WarningLevel, detectorMinSeen),
		detector.NewDDM(c.DriftLevel, detectorMinSeen),
		grouper,
		emit,
	)
}

func ensembleConfig(c cfg.Settings) ensemble.Config {
	return ensemble.Config{
		Size:         c.EnsembleSize,
		ClassCount:   c.ClassCount,
		WorkerPool:   c.WorkerPool,
		WeightedVote: c.WeightedVote,
		Member:       memberConfig(c),
	}
}

func memberConfig(c cfg.Settings) member.Config {
	return member.Config{
		UseBackground:     c.UseBackground,
		UseDriftDetector:  c.UseDriftDetector,
		UseRecurring:      c.UseRecurring,
		DecisionMechanism: c.DecisionMechanism,
		WarningTimeout:    c.WarningTimeout,
		Window:            windowConfig(c),
	}
}

func windowConfig(c cfg.Settings) window.Config {
	return window.Config{
		DefaultSize:       c.WindowDefaultSize,
		MinSize:           c.WindowMinSize,
		Increment:         c.WindowIncrement,
		Policy:            window.ResizePolicy(c.ResizePolicy),
		DecisionThreshold: c.DecisionThreshold,
		RememberSize:      c.RememberSize,
	}
}

func buildSource(c cfg.Settings) (stream.Source, error) {
	switch c.StreamSource {
	case "synthetic":
		return &stream.Synthetic{FeatureCount: c.FeatureCount}, nil
	case "csv":
		return &stream.CSV{Path: c.StreamPath}, nil
	case "http":
		return stream.NewHTTP(c.StreamURL, 30*time.Second), nil
	case "ws":
		return stream.NewWS(c.StreamURL, 15*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown stream source %q", c.StreamSource)
	}
}

func startMetricsServer(ctx context.Context, c cfg.Settings, cancel context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Int("port", c.MetricsPort).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
			cancel()
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()
}

func runTrainingLoop(ctx context.Context, ens *ensemble.Coordinator, m *metrics.Metrics, examples <-chan learner.Example, errs <-chan error, sig <-chan os.Signal, cancel context.CancelFunc) {
	const gaugeEvery = 100

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("shutdown signal received")
			cancel()
			return
		case err := <-errs:
			log.Warn().Err(err).Msg("stream error")
		case ex, ok := <-examples:
			if !ok {
				return
			}
			start := time.Now()
			ens.Train(ex)
			m.TrainLatency.Observe(time.Since(start).Seconds())
			m.ExamplesTotal.Inc()

			if ens.Instances()%gaugeEvery == 0 {
				m.HistorySize.Set(float64(ens.History().Size()))
				m.EnsembleAccuracy.Set(ens.Accuracy())
			}
		}
	}
}
