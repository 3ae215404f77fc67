package capture

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/voice-notes/internal/lenient"
	"github.com/rcliao/voice-notes/internal/model"
	"github.com/rcliao/voice-notes/internal/store"
)

// --- fakes ---

type fakeDevice struct {
	supported  []string
	chunks     [][]byte
	hold       bool
	acquireErr error

	mu      sync.Mutex
	streams []*fakeStream
}

func (d *fakeDevice) Acquire(ctx context.Context) (Stream, error) {
	if d.acquireErr != nil {
		return nil, d.acquireErr
	}
	s := &fakeStream{dev: d, quit: make(chan struct{})}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDevice) allReleased() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.streams {
		if !s.released.Load() {
			return false
		}
	}
	return true
}

type fakeStream struct {
	dev      *fakeDevice
	quit     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
	released atomic.Bool
}

func (s *fakeStream) Supports(mime string) bool {
	for _, m := range s.dev.supported {
		if m == mime {
			return true
		}
	}
	return false
}

func (s *fakeStream) Record(Format) <-chan []byte {
	out := make(chan []byte)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		for _, c := range s.dev.chunks {
			select {
			case out <- c:
			case <-s.quit:
				return
			}
		}
		if s.dev.hold {
			<-s.quit
		}
	}()
	return out
}

func (s *fakeStream) Release() error {
	s.once.Do(func() {
		close(s.quit)
		s.wg.Wait()
		s.released.Store(true)
	})
	return nil
}

type fakeTranscriber struct {
	text   string
	err    error
	before func()

	calls  atomic.Int32
	audio  []byte
	format string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, format string) (string, error) {
	f.calls.Add(1)
	if f.before != nil {
		f.before()
	}
	f.audio, _ = io.ReadAll(audio)
	f.format = format
	return f.text, f.err
}

type fakeSummarizer struct {
	reply string
	err   error
	after func()
	calls atomic.Int32
}

func (f *fakeSummarizer) Summarize(context.Context, string) (string, error) {
	f.calls.Add(1)
	if f.after != nil {
		f.after()
	}
	return f.reply, f.err
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.State)
	}
	return out
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

const goodReply = `Sure! Here you go:
{"title": "Crypto meetup", "category": "Networking", "summary": "Sarah met Alex.",
 "metadata": {"people": ["Sarah", "Alex"], "company": {"name": "DigitalFin Labs"}, "age": 29,}}`

var fixedNow = time.Date(2024, 10, 5, 14, 30, 0, 0, time.UTC)

func webmDevice(chunks ...string) *fakeDevice {
	d := &fakeDevice{supported: []string{"audio/webm;codecs=opus", "audio/wav"}}
	for _, c := range chunks {
		d.chunks = append(d.chunks, []byte(c))
	}
	return d
}

// --- tests ---

func TestRunPersistsNote(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	dev := webmDevice("ab", "", "cd")
	tr := &fakeTranscriber{text: "Hey, aren't you Alex from ChainBridge Ventures?"}
	sum := &fakeSummarizer{reply: goodReply}
	rec := &recorder{}

	p := New(dev, tr, sum, st, WithObserver(rec.observe), WithClock(func() time.Time { return fixedNow }))
	note, err := p.Run(ctx, nil)
	require.NoError(t, err)

	assert.NotZero(t, note.ID)
	assert.Equal(t, "Crypto meetup", note.Title)
	assert.Equal(t, "Networking", note.Category)
	assert.Equal(t, "Sarah met Alex.", note.Summary)
	assert.Equal(t, tr.text, note.Transcription)
	assert.Equal(t, []string{"people", "company", "age"}, note.Metadata.Keys())
	assert.True(t, fixedNow.Equal(note.Date))

	assert.Equal(t, "abcd", string(tr.audio))
	assert.Equal(t, "webm", tr.format)
	assert.Equal(t, int32(1), tr.calls.Load())
	assert.Equal(t, int32(1), sum.calls.Load())
	assert.True(t, dev.allReleased())

	got, err := st.Get(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.Title, got.Title)
	assert.True(t, note.Metadata.Equal(got.Metadata))

	assert.Equal(t, []State{StateRecording, StateStopped, StateTranscribing, StateSummarizing, StatePersisted}, rec.states())
	last := rec.last()
	require.NotNil(t, last.Note)
	assert.Equal(t, note.ID, last.Note.ID)
	assert.NotEmpty(t, last.RunID)
}

func TestNoteDateIsTakenAfterSummarizing(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	var ticks atomic.Int64
	clock := func() time.Time {
		return fixedNow.Add(time.Duration(ticks.Add(1)) * time.Minute)
	}
	var summarizedAt time.Time
	sum := &fakeSummarizer{reply: goodReply}
	sum.after = func() { summarizedAt = clock() }
	rec := &recorder{}

	p := New(webmDevice("ab"), &fakeTranscriber{text: "t"}, sum, st, WithObserver(rec.observe), WithClock(clock))
	note, err := p.Run(ctx, nil)
	require.NoError(t, err)

	started := rec.events[0]
	require.Equal(t, StateRecording, started.State)
	assert.True(t, note.Date.After(started.At), "date %s, recording started %s", note.Date, started.At)
	assert.True(t, note.Date.After(summarizedAt), "date %s, summarizer returned %s", note.Date, summarizedAt)

	got, err := st.Get(ctx, note.ID)
	require.NoError(t, err)
	assert.True(t, note.Date.Equal(got.Date))
}

func TestTranscriptionFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	dev := webmDevice("audio")
	var releasedAtCall bool
	tr := &fakeTranscriber{err: errors.New("openai error 500")}
	tr.before = func() { releasedAtCall = dev.allReleased() }
	sum := &fakeSummarizer{reply: goodReply}
	rec := &recorder{}

	p := New(dev, tr, sum, st, WithObserver(rec.observe))
	_, err := p.Run(ctx, nil)

	require.ErrorIs(t, err, ErrTranscription)
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StateTranscribing, se.Stage)
	assert.NotEmpty(t, se.RunID)

	assert.True(t, releasedAtCall, "device must be released before transcription starts")
	assert.Equal(t, int32(0), sum.calls.Load())
	all, err := st.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.Equal(t, StateFailed, rec.last().State)
	assert.ErrorIs(t, rec.last().Err, ErrTranscription)
}

func TestEmptyTranscriptIsTranscriptionError(t *testing.T) {
	st := newTestStore(t)
	sum := &fakeSummarizer{reply: goodReply}
	p := New(nil, &fakeTranscriber{text: "  \n"}, sum, st)

	_, err := p.Process(context.Background(), &Recording{Format: Formats[0], Data: []byte("x")})
	assert.ErrorIs(t, err, ErrTranscription)
	assert.Equal(t, int32(0), sum.calls.Load())
}

func TestEmptyRecordingSkipsTranscription(t *testing.T) {
	tr := &fakeTranscriber{text: "hello"}
	p := New(nil, tr, &fakeSummarizer{reply: goodReply}, newTestStore(t))

	_, err := p.Process(context.Background(), &Recording{Format: Formats[0]})
	assert.ErrorIs(t, err, ErrTranscription)
	assert.ErrorIs(t, err, ErrEmptyRecording)
	assert.Equal(t, int32(0), tr.calls.Load())
}

func TestProcessFencedReplyWithTrailingComma(t *testing.T) {
	st := newTestStore(t)
	reply := "Sure! ```{\"title\":\"T\",\"category\":\"C\",\"summary\":\"S\",\"metadata\":{\"a\":1,}}```"
	p := New(nil, &fakeTranscriber{text: "t"}, &fakeSummarizer{reply: reply}, st)

	note, err := p.Process(context.Background(), &Recording{Format: Formats[0], Data: []byte("x")})
	require.NoError(t, err)

	want := model.NewMapping()
	want.Set("a", model.Number(1))
	assert.True(t, want.Equal(note.Metadata))
	assert.Equal(t, "T", note.Title)
	assert.Equal(t, "C", note.Category)
	assert.Equal(t, "S", note.Summary)
}

func TestProcessNonMappingMetadataBecomesEmpty(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	for _, md := range []string{`"just a string"`, `null`, `[1,2]`, `42`} {
		reply := `{"title":"T","category":"C","summary":"S","metadata":` + md + `}`
		p := New(nil, &fakeTranscriber{text: "t"}, &fakeSummarizer{reply: reply}, st)

		note, err := p.Process(ctx, &Recording{Format: Formats[0], Data: []byte("x")})
		require.NoError(t, err, md)
		assert.Equal(t, 0, note.Metadata.Len(), md)

		got, err := st.Get(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Metadata.Len())
	}

	reply := `{"title":"T","category":"C","summary":"S"}`
	p := New(nil, &fakeTranscriber{text: "t"}, &fakeSummarizer{reply: reply}, st)
	note, err := p.Process(ctx, &Recording{Format: Formats[0], Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, 0, note.Metadata.Len())
}

func TestProcessUnparseableReply(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	raw := "I'm sorry, I can't summarize that."
	rec := &recorder{}
	p := New(nil, &fakeTranscriber{text: "t"}, &fakeSummarizer{reply: raw}, st, WithObserver(rec.observe))

	_, err := p.Process(ctx, &Recording{Format: Formats[0], Data: []byte("x")})
	require.ErrorIs(t, err, ErrSummaryParse)
	assert.ErrorIs(t, err, lenient.ErrNoObject)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StateSummarizing, se.Stage)
	assert.Equal(t, raw, se.Raw)

	all, err := st.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, []State{StateTranscribing, StateSummarizing, StateFailed}, rec.states())
}

func TestProcessMissingFields(t *testing.T) {
	replies := []string{
		`{"category":"C","summary":"S","metadata":{}}`,
		`{"title":7,"category":"C","summary":"S","metadata":{}}`,
		`{"title":"T","category":"","summary":"S","metadata":{}}`,
		`{"title":"T","category":"C","summary":null,"metadata":{}}`,
	}
	for _, reply := range replies {
		p := New(nil, &fakeTranscriber{text: "t"}, &fakeSummarizer{reply: reply}, newTestStore(t))
		_, err := p.Process(context.Background(), &Recording{Format: Formats[0], Data: []byte("x")})
		assert.ErrorIs(t, err, ErrSummaryParse, reply)

		var se *StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, reply, se.Raw)
	}
}

func TestSummarizerTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	p := New(nil, &fakeTranscriber{text: "t"}, &fakeSummarizer{err: cause}, newTestStore(t))

	_, err := p.Process(context.Background(), &Recording{Format: Formats[0], Data: []byte("x")})
	assert.ErrorIs(t, err, ErrSummarization)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSummaryParse)
}

func TestPersistError(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Close())
	rec := &recorder{}
	p := New(nil, &fakeTranscriber{text: "t"}, &fakeSummarizer{reply: goodReply}, st, WithObserver(rec.observe))

	_, err := p.Process(context.Background(), &Recording{Format: Formats[0], Data: []byte("x")})
	assert.ErrorIs(t, err, ErrPersist)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StatePersisted, se.Stage)
	assert.Equal(t, StateFailed, rec.last().State)
}

func TestStartNoSupportedFormat(t *testing.T) {
	dev := &fakeDevice{supported: []string{"audio/flac"}}
	p := New(dev, &fakeTranscriber{}, &fakeSummarizer{}, newTestStore(t))

	_, err := p.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoSupportedFormat)
	assert.True(t, dev.allReleased())
}

func TestStartPrefersEarlierFormat(t *testing.T) {
	dev := &fakeDevice{supported: []string{"audio/wav", "audio/ogg;codecs=opus", "audio/mpeg"}, hold: true}
	p := New(dev, &fakeTranscriber{}, &fakeSummarizer{}, newTestStore(t))

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	defer c.Abort()
	assert.Equal(t, "ogg", c.Format().Ext)
}

func TestStartMicrophoneErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason Reason
	}{
		{"permission", &MicrophoneError{Reason: ReasonPermissionDenied}, ReasonPermissionDenied},
		{"not found", &MicrophoneError{Reason: ReasonNotFound}, ReasonNotFound},
		{"busy", &MicrophoneError{Reason: ReasonBusy}, ReasonBusy},
		{"plain error", errors.New("driver crashed"), ReasonOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(&fakeDevice{acquireErr: tt.err}, &fakeTranscriber{}, &fakeSummarizer{}, newTestStore(t))
			_, err := p.Start(context.Background())
			require.ErrorIs(t, err, ErrMicrophoneUnavailable)

			var me *MicrophoneError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, tt.reason, me.Reason)
			assert.NotEmpty(t, me.Notice())
		})
	}

	p := New(nil, &fakeTranscriber{}, &fakeSummarizer{}, newTestStore(t))
	_, err := p.Start(context.Background())
	assert.ErrorIs(t, err, ErrMicrophoneUnavailable)
}

func TestStopTwice(t *testing.T) {
	dev := webmDevice("a")
	dev.hold = true
	p := New(dev, &fakeTranscriber{}, &fakeSummarizer{}, newTestStore(t))

	c, err := p.Start(context.Background())
	require.NoError(t, err)
	_, err = c.Stop()
	require.NoError(t, err)
	_, err = c.Stop()
	assert.ErrorIs(t, err, ErrCaptureEnded)
	c.Abort()
	assert.True(t, dev.allReleased())
}

func TestRunStopsOnSignal(t *testing.T) {
	dev := webmDevice("ab", "cd")
	dev.hold = true
	tr := &fakeTranscriber{text: "t"}
	rec := &recorder{}
	p := New(dev, tr, &fakeSummarizer{reply: goodReply}, newTestStore(t), WithObserver(func(ev Event) {
		rec.observe(ev)
	}))

	stop := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(stop)
	}()

	note, err := p.Run(context.Background(), stop)
	require.NoError(t, err)
	assert.NotZero(t, note.ID)
	assert.True(t, dev.allReleased())
}

func TestRunCancelledWhileRecording(t *testing.T) {
	dev := webmDevice("ab")
	dev.hold = true
	tr := &fakeTranscriber{text: "t"}
	rec := &recorder{}
	p := New(dev, tr, &fakeSummarizer{reply: goodReply}, newTestStore(t), WithObserver(rec.observe))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Run(ctx, make(chan struct{}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, dev.allReleased())
	assert.Equal(t, int32(0), tr.calls.Load())
	assert.Equal(t, []State{StateRecording, StateFailed}, rec.states())
}

func TestConcurrentPipelines(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	const runs = 2
	notes := make([]*model.Note, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := New(webmDevice("chunk"), &fakeTranscriber{text: "t"}, &fakeSummarizer{reply: goodReply}, st)
			notes[i], errs[i] = p.Run(ctx, nil)
		}(i)
	}
	wg.Wait()

	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i])
		got, err := st.Get(ctx, notes[i].ID)
		require.NoError(t, err)
		assert.Equal(t, notes[i].ID, got.ID)
	}
	assert.NotEqual(t, notes[0].ID, notes[1].ID)

	all, err := st.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, runs)
}
