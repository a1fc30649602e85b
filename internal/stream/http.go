package stream

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"driftstream/internal/learner"
)

// HTTP fetches a CSV dataset from a URL once and replays it as a stream.
type HTTP struct {
	URL string

	client *resty.Client
}

// NewHTTP creates a source for the given dataset URL.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second) // default fallback
	}
	return &HTTP{URL: url, client: r}
}

func (h *HTTP) Stream(ctx context.Context, out chan<- learner.Example, errs chan<- error) error {
	log.Info().Str("url", h.URL).Msg("fetching dataset")

	resp, err := h.client.R().SetContext(ctx).Get(h.URL)
	if err != nil {
		return fmt.Errorf("fetch dataset: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("fetch dataset: unexpected status %d", resp.StatusCode())
	}

	return replayCSV(ctx, bytes.NewReader(resp.Body()), h.URL, out, errs)
}
