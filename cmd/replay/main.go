// Command replay runs an offline prequential evaluation: it replays a CSV
// dataset through the ensemble (test-then-train) and prints periodic and
// final accuracy together with lifecycle counts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"driftstream/internal/cfg"
	"driftstream/internal/detector"
	"driftstream/internal/ensemble"
	"driftstream/internal/learner"
	"driftstream/internal/member"
	"driftstream/internal/stream"
	"driftstream/internal/topology"
	"driftstream/internal/window"
)

const detectorMinSeen = 30

func main() {
	path := flag.String("data", "", "CSV dataset to replay (features..., label)")
	reportEvery := flag.Int64("report", 1000, "print accuracy every N examples")
	quiet := flag.Bool("quiet", false, "suppress engine logs")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -data <file.csv> [-report N]")
		os.Exit(2)
	}
	if *quiet {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ens, counts, err := buildEnsemble(c)
	if err != nil {
		log.Fatal().Err(err).Msg("ensemble construction failed")
	}
	defer ens.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	examples := make(chan learner.Example, 64)
	errs := make(chan error, 32)
	src := &stream.CSV{Path: *path}
	streamDone := make(chan error, 1)
	go func() {
		streamDone <- src.Stream(ctx, examples, errs)
		close(examples)
	}()
	go func() {
		for err := range errs {
			log.Warn().Err(err).Msg("stream error")
		}
	}()

	var seen, correct int64
	for ex := range examples {
		votes := ens.Predict(ex)
		if learner.PredictedLabel(votes) == ex.Label {
			correct++
		}
		ens.Train(ex)
		seen++

		if *reportEvery > 0 && seen%*reportEvery == 0 {
			fmt.Printf("%10d examples  accuracy=%.4f  history=%d\n", seen, float64(correct)/float64(seen), ens.History().Size())
		}
	}
	if err := <-streamDone; err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("replay failed")
	}

	if seen == 0 {
		fmt.Println("no examples replayed")
		return
	}

	fmt.Println("---")
	fmt.Printf("examples:            %d\n", seen)
	fmt.Printf("prequential accuracy: %.4f\n", float64(correct)/float64(seen))
	fmt.Printf("warnings:            %d\n", counts.warnings.Load())
	fmt.Printf("background drifts:   %d\n", counts.background.Load())
	fmt.Printf("recurring drifts:    %d\n", counts.recurring.Load())
	fmt.Printf("false alarms:        %d\n", counts.falseAlarms.Load())
	fmt.Printf("concepts archived:   %d\n", ens.History().Size())
}

// Counters are atomic because workers may emit events concurrently.
type lifecycleCounts struct {
	warnings    atomic.Int64
	background  atomic.Int64
	recurring   atomic.Int64
	falseAlarms atomic.Int64
}

func buildEnsemble(c cfg.Settings) (*ensemble.Coordinator, *lifecycleCounts, error) {
	counts := &lifecycleCounts{}
	emit := func(ev member.Event) {
		switch ev.Type {
		case member.EventWarningOpened:
			counts.warnings.Add(1)
		case member.EventDriftBackground, member.EventDriftColdReset:
			counts.background.Add(1)
		case member.EventDriftRecurring:
			counts.recurring.Add(1)
		case member.EventFalseAlarmTimeout, member.EventFalseAlarmComparison:
			counts.falseAlarms.Add(1)
		}
	}

	var grouper topology.Grouper
	if c.UseGrouping {
		grouper = topology.NewCentroidGrouper(c.GroupRadius)
	}

	ens, err := ensemble.New(
		ensemble.Config{
			Size:         c.EnsembleSize,
			ClassCount:   c.ClassCount,
			WorkerPool:   c.WorkerPool,
			WeightedVote: c.WeightedVote,
			Member: member.Config{
				UseBackground:     c.UseBackground,
				UseDriftDetector:  c.UseDriftDetector,
				UseRecurring:      c.UseRecurring,
				DecisionMechanism: c.DecisionMechanism,
				WarningTimeout:    c.WarningTimeout,
				Window: window.Config{
					DefaultSize:       c.WindowDefaultSize,
					MinSize:           c.WindowMinSize,
					Increment:         c.WindowIncrement,
					Policy:            window.ResizePolicy(c.ResizePolicy),
					DecisionThreshold: c.DecisionThreshold,
					RememberSize:      c.RememberSize,
				},
			},
		},
		learner.NewNaiveBayes(c.ClassCount, c.FeatureCount),
		detector.NewDDM(c.WarningLevel, detectorMinSeen),
		detector.NewDDM(c.DriftLevel, detectorMinSeen),
		grouper,
		emit,
	)
	if err != nil {
		return nil, nil, err
	}
	return ens, counts, nil
}
