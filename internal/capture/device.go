package capture

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
)

// Device is an audio source that can be held by one capture at a time.
// Acquire failures should be *MicrophoneError.
type Device interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is an acquired device.
type Stream interface {
	// Supports reports whether the device can record mime.
	Supports(mime string) bool

	// Record starts producing chunks in f. The channel is closed when the
	// device stops producing audio or is released.
	Record(f Format) <-chan []byte

	// Release frees the device. It is safe to call more than once.
	Release() error
}

const (
	chunkSize  = 32 << 10
	sniffBytes = 3072
)

// FileDevice replays an audio file or stream as if it were a microphone.
// The container is sniffed from the first bytes, so the device supports
// exactly one of Formats.
type FileDevice struct {
	open  func() (io.ReadCloser, error)
	inUse atomic.Bool
}

// NewFileDevice reads audio from path each time it is acquired.
func NewFileDevice(path string) *FileDevice {
	return &FileDevice{open: func() (io.ReadCloser, error) { return os.Open(path) }}
}

// NewReaderDevice reads audio from r. It can only be acquired once.
func NewReaderDevice(r io.Reader) *FileDevice {
	var once sync.Once
	return &FileDevice{open: func() (io.ReadCloser, error) {
		var rc io.ReadCloser
		once.Do(func() { rc = io.NopCloser(r) })
		if rc == nil {
			return nil, &MicrophoneError{Reason: ReasonBusy, Err: errors.New("reader already consumed")}
		}
		return rc, nil
	}}
}

func (d *FileDevice) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, &MicrophoneError{Reason: ReasonOther, Err: err}
	}
	if !d.inUse.CompareAndSwap(false, true) {
		return nil, &MicrophoneError{Reason: ReasonBusy}
	}

	rc, err := d.open()
	if err != nil {
		d.inUse.Store(false)
		var me *MicrophoneError
		if errors.As(err, &me) {
			return nil, me
		}
		return nil, &MicrophoneError{Reason: reasonFor(err), Err: err}
	}

	br := bufio.NewReaderSize(rc, chunkSize)
	sniffed := make(chan []byte, 1)
	go func() {
		head, _ := br.Peek(sniffBytes)
		sniffed <- head
	}()

	var head []byte
	select {
	case head = <-sniffed:
	case <-ctx.Done():
		// Closing rc unblocks the peek for files; a reader source is
		// abandoned to its pending read.
		rc.Close()
		d.inUse.Store(false)
		return nil, &MicrophoneError{Reason: ReasonOther, Err: ctx.Err()}
	}

	return &fileStream{
		dev:  d,
		rc:   rc,
		r:    br,
		mime: mimetype.Detect(head),
		quit: make(chan struct{}),
	}, nil
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ReasonNotFound
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermissionDenied
	default:
		return ReasonOther
	}
}

type fileStream struct {
	dev  *FileDevice
	rc   io.ReadCloser
	r    io.Reader
	mime *mimetype.MIME

	quit     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	readErr  error
	closeErr error
}

// Supports matches the sniffed type, its aliases and parents. Audio and
// video variants of the same container count as the same format.
func (s *fileStream) Supports(mime string) bool {
	want, _, _ := strings.Cut(mime, ";")
	want = strings.TrimSpace(want)
	for m := s.mime; m != nil; m = m.Parent() {
		if m.Is(want) || subtype(m.String()) == subtype(want) {
			return true
		}
	}
	return false
}

func subtype(mime string) string {
	_, sub, _ := strings.Cut(mime, "/")
	return sub
}

type readResult struct {
	buf []byte
	err error
}

// Record forwards chunks until the source is drained or the stream is
// released. The channel closes on release even while a read is blocked.
func (s *fileStream) Record(Format) <-chan []byte {
	out := make(chan []byte)
	reads := make(chan readResult)
	go s.read(reads)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		for {
			var res readResult
			select {
			case res = <-reads:
			case <-s.quit:
				return
			}
			if len(res.buf) > 0 {
				select {
				case out <- res.buf:
				case <-s.quit:
					return
				}
			}
			if res.err != nil {
				select {
				case <-s.quit:
					// Errors caused by closing the source on release.
				default:
					if !errors.Is(res.err, io.EOF) {
						s.readErr = res.err
					}
				}
				return
			}
		}
	}()
	return out
}

// read pulls from the source until it fails or the stream is released. A
// read blocked on an idle source outlives Release and exits when it returns.
func (s *fileStream) read(reads chan<- readResult) {
	for {
		buf := make([]byte, chunkSize)
		n, err := s.r.Read(buf)
		select {
		case reads <- readResult{buf: buf[:n], err: err}:
		case <-s.quit:
			return
		}
		if err != nil {
			return
		}
	}
}

// Release stops recording and frees the device without waiting for a
// pending read on the source.
func (s *fileStream) Release() error {
	s.once.Do(func() {
		close(s.quit)
		s.closeErr = s.rc.Close()
		s.wg.Wait()
		s.dev.inUse.Store(false)
	})
	if s.readErr != nil {
		return s.readErr
	}
	return s.closeErr
}
