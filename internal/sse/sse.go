// Package sse turns a streaming discovery run into server-sent events.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/discovery"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/logging"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

// HeartbeatInterval is the longest gap without a delta before a heartbeat.
const HeartbeatInterval = 15 * time.Second

// EventType is the closed set of stream events.
type EventType string

const (
	EventStart        EventType = "start"
	EventDelta        EventType = "delta"
	EventHeartbeat    EventType = "heartbeat"
	EventToolComplete EventType = "tool_complete"
	EventError        EventType = "error"
	EventDone         EventType = "done"
)

// Event is one frame on the wire.
type Event struct {
	Type      EventType          `json:"type"`
	RunID     string             `json:"run_id,omitempty"`
	Text      string             `json:"text,omitempty"`
	Tool      string             `json:"tool,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorType string             `json:"error_type,omitempty"`
	TotalTime *float64           `json:"total_time,omitempty"`
	Metadata  *discovery.Metrics `json:"metadata,omitempty"`
	Outputs   *models.Outputs    `json:"outputs,omitempty"`
}

var (
	ErrNotStarted = errors.New("sse: stream not started")
	ErrStarted    = errors.New("sse: stream already started")
	ErrClosed     = errors.New("sse: stream already terminated")
)

// SetHeaders prepares an HTTP response for event streaming.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Emitter writes events in order: start first, at most one terminal event.
// It is safe for concurrent use.
type Emitter struct {
	mu       sync.Mutex
	w        io.Writer
	flusher  http.Flusher
	started  bool
	finished bool
	lastBeat time.Time
	now      func() time.Time
}

// NewEmitter writes frames to w, flushing after each when w is an
// http.Flusher.
func NewEmitter(w io.Writer) *Emitter {
	e := &Emitter{w: w, now: time.Now}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

func (e *Emitter) Start(runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrStarted
	}
	e.started = true
	return e.write(Event{Type: EventStart, RunID: runID})
}

func (e *Emitter) Delta(text string) error {
	return e.emit(Event{Type: EventDelta, Text: text})
}

func (e *Emitter) ToolComplete(tool string) error {
	return e.emit(Event{Type: EventToolComplete, Tool: tool})
}

// Heartbeat writes a heartbeat if the stream is open.
func (e *Emitter) Heartbeat() error {
	return e.emit(Event{Type: EventHeartbeat})
}

// Error terminates the stream with an error event.
func (e *Emitter) Error(message string, kind discovery.Kind) error {
	return e.terminate(Event{Type: EventError, Error: message, ErrorType: string(kind)})
}

// Done terminates the stream gracefully.
func (e *Emitter) Done(res *discovery.Result) error {
	ev := Event{Type: EventDone}
	if res != nil {
		total := res.Metrics.TotalTime
		metrics := res.Metrics
		outputs := res.Outputs
		ev.RunID = res.RunID
		ev.TotalTime = &total
		ev.Metadata = &metrics
		ev.Outputs = &outputs
	}
	return e.terminate(ev)
}

// Finished reports whether a terminal event was written.
func (e *Emitter) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

// idleFor reports how long since the last delta or heartbeat.
func (e *Emitter) idleFor() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now().Sub(e.lastBeat)
}

func (e *Emitter) emit(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return ErrNotStarted
	}
	if e.finished {
		return ErrClosed
	}
	return e.write(ev)
}

func (e *Emitter) terminate(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return ErrNotStarted
	}
	if e.finished {
		return ErrClosed
	}
	e.finished = true
	return e.write(ev)
}

// write must be called with mu held.
func (e *Emitter) write(ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	if ev.Type == EventDelta || ev.Type == EventHeartbeat || ev.Type == EventStart {
		e.lastBeat = e.now()
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", b); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Streamer is the streaming side of the discovery pipeline.
type Streamer interface {
	Stream(ctx context.Context, profile models.Profile, opts discovery.Options, h discovery.Handler) (*discovery.Result, error)
}

// Runner drives a Streamer into an Emitter.
type Runner struct {
	streamer  Streamer
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewRunner creates a runner. heartbeat <= 0 means HeartbeatInterval.
func NewRunner(s Streamer, heartbeat time.Duration, logger *zap.Logger) *Runner {
	if heartbeat <= 0 {
		heartbeat = HeartbeatInterval
	}
	return &Runner{streamer: s, heartbeat: heartbeat, logger: logging.OrNop(logger)}
}

// Run streams one discovery run. The stream always ends with done or error
// unless the consumer has gone away; the pipeline error, if any, is returned.
func (r *Runner) Run(ctx context.Context, e *Emitter, profile models.Profile, opts discovery.Options) error {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	log := r.logger.With(zap.String("run_id", opts.RunID))

	if err := e.Start(opts.RunID); err != nil {
		return err
	}

	hbCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.keepAlive(hbCtx, e, log)
	}()

	res, err := r.streamer.Stream(ctx, profile, opts, func(c discovery.Chunk) error {
		switch c.Kind {
		case discovery.ChunkToolComplete:
			return e.ToolComplete(c.Tool)
		default:
			return e.Delta(c.Text)
		}
	})
	stop()
	wg.Wait()

	if err != nil {
		log.Warn("Discovery stream failed", zap.Error(err), zap.String("error_type", string(discovery.KindOf(err))))
		_ = e.Error(discovery.UserMessage(err), discovery.KindOf(err))
		return err
	}
	if err := e.Done(res); err != nil {
		log.Debug("Could not write done event", zap.Error(err))
	}
	return nil
}

func (r *Runner) keepAlive(ctx context.Context, e *Emitter, log *zap.Logger) {
	tick := r.heartbeat / 3
	if tick <= 0 {
		tick = r.heartbeat
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.idleFor() < r.heartbeat {
				continue
			}
			if err := e.Heartbeat(); err != nil {
				log.Debug("Failed to write heartbeat", zap.Error(err))
				return
			}
		}
	}
}
