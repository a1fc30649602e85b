package stream

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"driftstream/internal/learner"
)

// CSV replays a file of numeric rows where the last column is the integer
// label. A header row is skipped automatically.
type CSV struct {
	Path string
}

func (c *CSV) Stream(ctx context.Context, out chan<- learner.Example, errs chan<- error) error {
	f, err := os.Open(c.Path)
	if err != nil {
		return fmt.Errorf("open stream file %s: %w", c.Path, err)
	}
	defer f.Close()

	return replayCSV(ctx, f, c.Path, out, errs)
}

// replayCSV parses rows from r and emits them as examples. Shared with the
// HTTP source.
func replayCSV(ctx context.Context, r io.Reader, name string, out chan<- learner.Example, errs chan<- error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var sent, skipped int64
	for {
		record, err := reader.Read()
		if err == io.EOF {
			log.Info().Str("source", name).Int64("examples", sent).Int64("skipped", skipped).Msg("csv stream exhausted")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}

		ex, err := parseRow(record)
		if err != nil {
			if sent == 0 && skipped == 0 {
				skipped++ // header row
				continue
			}
			skipped++
			select {
			case errs <- fmt.Errorf("%s row %d: %w", name, sent+skipped, err):
			default:
			}
			continue
		}

		select {
		case out <- ex:
			sent++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func parseRow(record []string) (learner.Example, error) {
	if len(record) < 2 {
		return learner.Example{}, fmt.Errorf("need at least one feature and a label, got %d fields", len(record))
	}

	features := make([]float64, len(record)-1)
	for i, field := range record[:len(record)-1] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return learner.Example{}, fmt.Errorf("feature %d: %w", i, err)
		}
		features[i] = v
	}

	label, err := strconv.Atoi(record[len(record)-1])
	if err != nil {
		return learner.Example{}, fmt.Errorf("label: %w", err)
	}

	return learner.Example{Features: features, Label: label, Weight: 1}, nil
}
