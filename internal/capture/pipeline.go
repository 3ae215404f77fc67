// Package capture turns recorded audio into a persisted note: capture,
// transcribe, summarize, store.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rcliao/voice-notes/internal/llm"
	"github.com/rcliao/voice-notes/internal/model"
)

// State is a step of a single capture run.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopped
	StateTranscribing
	StateSummarizing
	StatePersisted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	case StateTranscribing:
		return "transcribing"
	case StateSummarizing:
		return "summarizing"
	case StatePersisted:
		return "persisted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is delivered to observers on every transition.
type Event struct {
	RunID  string
	State  State
	Format Format
	Err    error
	Note   *model.Note
	At     time.Time
}

// NoteAdder is the part of the store the pipeline writes to.
type NoteAdder interface {
	Add(ctx context.Context, note model.Note) (int64, error)
}

// Pipeline runs captures. It is safe for concurrent use; runs share
// nothing but the store.
type Pipeline struct {
	device      Device
	transcriber llm.Transcriber
	summarizer  llm.Summarizer
	store       NoteAdder
	log         zerolog.Logger
	observers   []func(Event)
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithObserver registers fn for every event. Observers run synchronously on
// the goroutine driving the run and must not block.
func WithObserver(fn func(Event)) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, fn) }
}

// WithClock replaces time.Now for note dates and event times.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline. device may be nil when only Process is used.
func New(device Device, t llm.Transcriber, s llm.Summarizer, store NoteAdder, opts ...Option) *Pipeline {
	p := &Pipeline{
		device:      device,
		transcriber: t,
		summarizer:  s,
		store:       store,
		log:         zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) emit(ev Event) {
	ev.At = p.now()
	for _, fn := range p.observers {
		fn(ev)
	}
}

// Recording is the finalized audio of a stopped capture.
type Recording struct {
	RunID  string
	Format Format
	Data   []byte
}

// Capture is an in-progress recording holding the device.
type Capture struct {
	p      *Pipeline
	runID  string
	format Format
	stream Stream
	done   chan struct{}

	mu     sync.Mutex
	chunks [][]byte
	ended  bool
}

// RunID identifies the run in logs and events.
func (c *Capture) RunID() string { return c.runID }

// Format is the encoding chosen at start.
func (c *Capture) Format() Format { return c.format }

// Done is closed once the device stops producing audio.
func (c *Capture) Done() <-chan struct{} { return c.done }

// Start acquires the device, picks the first supported format and begins
// buffering audio.
func (p *Pipeline) Start(ctx context.Context) (*Capture, error) {
	if p.device == nil {
		return nil, &MicrophoneError{Reason: ReasonNotFound, Err: errors.New("no capture device configured")}
	}
	runID := ulid.Make().String()
	log := p.log.With().Str("run_id", runID).Logger()

	stream, err := p.device.Acquire(ctx)
	if err != nil {
		var me *MicrophoneError
		if !errors.As(err, &me) {
			err = &MicrophoneError{Reason: ReasonOther, Err: err}
		}
		log.Warn().Err(err).Msg("capture device unavailable")
		return nil, err
	}

	format, err := SelectFormat(stream.Supports)
	if err != nil {
		if rerr := stream.Release(); rerr != nil {
			log.Warn().Err(rerr).Msg("release capture device")
		}
		log.Warn().Err(err).Msg("no supported format")
		return nil, err
	}

	c := &Capture{
		p:      p,
		runID:  runID,
		format: format,
		stream: stream,
		done:   make(chan struct{}),
	}
	go c.collect(stream.Record(format))

	log.Info().Str("format", format.Ext).Msg("recording")
	p.emit(Event{RunID: runID, State: StateRecording, Format: format})
	return c, nil
}

func (c *Capture) collect(chunks <-chan []byte) {
	defer close(c.done)
	for chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		c.mu.Lock()
		c.chunks = append(c.chunks, chunk)
		c.mu.Unlock()
	}
}

func (c *Capture) end() error {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return ErrCaptureEnded
	}
	c.ended = true
	c.mu.Unlock()

	err := c.stream.Release()
	<-c.done
	return err
}

// Stop releases the device and joins the buffered chunks into one recording.
func (c *Capture) Stop() (*Recording, error) {
	if err := c.end(); err != nil {
		if errors.Is(err, ErrCaptureEnded) {
			return nil, err
		}
		c.p.log.Warn().Str("run_id", c.runID).Err(err).Msg("capture device reported an error")
		c.p.emit(Event{RunID: c.runID, State: StateFailed, Format: c.format, Err: err})
		return nil, &MicrophoneError{Reason: ReasonOther, Err: err}
	}

	c.mu.Lock()
	data := bytes.Join(c.chunks, nil)
	c.chunks = nil
	c.mu.Unlock()

	c.p.log.Info().Str("run_id", c.runID).Str("format", c.format.Ext).Int("bytes", len(data)).Msg("stopped")
	c.p.emit(Event{RunID: c.runID, State: StateStopped, Format: c.format})
	return &Recording{RunID: c.runID, Format: c.format, Data: data}, nil
}

// Abort releases the device and discards the audio.
func (c *Capture) Abort() {
	if err := c.end(); errors.Is(err, ErrCaptureEnded) {
		return
	}
	c.mu.Lock()
	c.chunks = nil
	c.mu.Unlock()

	c.p.log.Info().Str("run_id", c.runID).Msg("capture aborted")
	c.p.emit(Event{RunID: c.runID, State: StateFailed, Format: c.format, Err: context.Canceled})
}

// Process transcribes and summarizes rec and stores the resulting note.
// Each remote service is called once; nothing is retried and nothing is
// stored unless every stage succeeds.
func (p *Pipeline) Process(ctx context.Context, rec *Recording) (*model.Note, error) {
	runID := rec.RunID
	if runID == "" {
		runID = ulid.Make().String()
	}
	log := p.log.With().Str("run_id", runID).Logger()

	fail := func(stage State, kind error, raw string, err error) (*model.Note, error) {
		se := &StageError{Stage: stage, Kind: kind, RunID: runID, Raw: raw, Err: err}
		ev := log.Error().Str("stage", stage.String()).Err(err)
		if raw != "" {
			ev = ev.Str("raw_reply", raw)
		}
		ev.Msg(kind.Error())
		p.emit(Event{RunID: runID, State: StateFailed, Format: rec.Format, Err: se})
		return nil, se
	}

	p.emit(Event{RunID: runID, State: StateTranscribing, Format: rec.Format})
	log.Info().Str("stage", StateTranscribing.String()).Str("format", rec.Format.Ext).Int("bytes", len(rec.Data)).Msg("transcribing")
	if len(rec.Data) == 0 {
		return fail(StateTranscribing, ErrTranscription, "", ErrEmptyRecording)
	}

	transcript, err := p.transcriber.Transcribe(ctx, bytes.NewReader(rec.Data), rec.Format.Ext)
	if err != nil {
		return fail(StateTranscribing, ErrTranscription, "", err)
	}
	if strings.TrimSpace(transcript) == "" {
		return fail(StateTranscribing, ErrTranscription, "", errors.New("empty transcript"))
	}

	p.emit(Event{RunID: runID, State: StateSummarizing, Format: rec.Format})
	log.Info().Str("stage", StateSummarizing.String()).Int("transcript_chars", len(transcript)).Msg("summarizing")

	reply, err := p.summarizer.Summarize(ctx, transcript)
	if err != nil {
		return fail(StateSummarizing, ErrSummarization, "", err)
	}
	sum, err := decodeSummary(reply)
	if err != nil {
		return fail(StateSummarizing, ErrSummaryParse, reply, err)
	}

	note := model.Note{
		Title:         sum.Title,
		Category:      sum.Category,
		Summary:       sum.Summary,
		Transcription: transcript,
		Metadata:      sum.Metadata,
		Date:          p.now(),
	}
	id, err := p.store.Add(ctx, note)
	if err != nil {
		return fail(StatePersisted, ErrPersist, "", err)
	}
	note.ID = id

	log.Info().Str("stage", StatePersisted.String()).Int64("note_id", id).Str("title", note.Title).Msg("note saved")
	p.emit(Event{RunID: runID, State: StatePersisted, Format: rec.Format, Note: &note})
	return &note, nil
}

// Run records until stop is closed or the device runs dry, then processes
// the recording. Cancelling ctx while recording aborts the capture.
func (p *Pipeline) Run(ctx context.Context, stop <-chan struct{}) (*model.Note, error) {
	c, err := p.Start(ctx)
	if err != nil {
		return nil, err
	}

	select {
	case <-stop:
	case <-c.Done():
	case <-ctx.Done():
		c.Abort()
		return nil, ctx.Err()
	}

	rec, err := c.Stop()
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, rec)
}
