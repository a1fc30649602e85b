package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"driftstream/internal/learner"
)

// wsFrame is the wire format of one labeled example.
type wsFrame struct {
	Features []float64 `json:"features"`
	Label    int       `json:"label"`
	Weight   float64   `json:"weight,omitempty"`
}

// WS consumes labeled examples as JSON frames from a websocket feed,
// reconnecting with exponential backoff on failure.
type WS struct {
	URL  string
	Ping time.Duration
}

// NewWS creates a websocket source. ping <= 0 defaults to 15s.
func NewWS(url string, ping time.Duration) *WS {
	if ping <= 0 {
		ping = 15 * time.Second
	}
	return &WS{URL: url, Ping: ping}
}

func (w *WS) Stream(ctx context.Context, out chan<- learner.Example, errs chan<- error) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := w.streamOnce(ctx, out, errs); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Dur("backoff", backoff).Msg("websocket connection failed, reconnecting")
				select {
				case errs <- fmt.Errorf("ws reconnect: %w", err):
				default:
				}

				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}

				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			backoff = time.Second
		}
	}
}

func (w *WS) streamOnce(ctx context.Context, out chan<- learner.Example, errs chan<- error) error {
	log.Info().Str("url", w.URL).Msg("establishing websocket connection")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	conn.SetReadLimit(512 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(w.Ping)
	defer pingTicker.Stop()

	frames := make(chan wsFrame, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			var frame wsFrame
			if err := conn.ReadJSON(&frame); err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
		case err := <-readErr:
			return fmt.Errorf("read failed: %w", err)
		case frame := <-frames:
			if len(frame.Features) == 0 {
				select {
				case errs <- fmt.Errorf("ws frame without features"):
				default:
				}
				continue
			}
			weight := frame.Weight
			if weight <= 0 {
				weight = 1
			}
			select {
			case out <- learner.Example{Features: frame.Features, Label: frame.Label, Weight: weight}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
