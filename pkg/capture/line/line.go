// Package line implements a [capture.Recognizer] that reads already
// recognised utterances from a text stream, one per line.
//
// Each line holds a transcript and a confidence separated by a tab:
//
//	مرحبا	0.92
//
// A line without a tab is taken as a transcript with the recognizer's default
// confidence. A line of the form "!<code>" (for example "!no-speech")
// reports a recognition failure with that code, which lets scripted sessions
// and tests exercise the error path. Blank lines are skipped.
package line

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/voiceid/pkg/capture"
)

// Compile-time check.
var _ capture.Recognizer = (*Recognizer)(nil)

// Option configures a [Recognizer].
type Option func(*Recognizer)

// WithDefaultConfidence sets the confidence used for lines without one.
// Default: 1.
func WithDefaultConfidence(c float64) Option {
	return func(r *Recognizer) {
		r.defaultConfidence = c
	}
}

// WithClock sets the time source used to stamp utterances.
func WithClock(now func() time.Time) Option {
	return func(r *Recognizer) {
		if now != nil {
			r.now = now
		}
	}
}

// Recognizer reads utterances from an [io.Reader]. Each call to Recognize
// consumes lines until one utterance (or failure) is produced. After the
// input is exhausted Recognize returns [io.EOF].
type Recognizer struct {
	defaultConfidence float64
	now               func() time.Time

	mu    sync.Mutex
	lines chan lineOrErr
	once  sync.Once
	src   io.Reader
}

type lineOrErr struct {
	text string
	err  error
}

// New returns a [Recognizer] reading from src.
func New(src io.Reader, opts ...Option) *Recognizer {
	r := &Recognizer{
		defaultConfidence: 1,
		now:               time.Now,
		src:               src,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// start launches the reader goroutine. Reading happens off the caller's
// goroutine so that Recognize can honour cancellation while the source
// blocks (as stdin does).
func (r *Recognizer) start() {
	r.lines = make(chan lineOrErr)
	go func() {
		defer close(r.lines)
		sc := bufio.NewScanner(r.src)
		for sc.Scan() {
			r.lines <- lineOrErr{text: sc.Text()}
		}
		if err := sc.Err(); err != nil {
			r.lines <- lineOrErr{err: err}
		}
	}()
}

// Recognize implements [capture.Recognizer].
func (r *Recognizer) Recognize(ctx context.Context) (capture.Utterance, error) {
	r.once.Do(r.start)

	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return capture.Utterance{}, capture.NewError(capture.ErrAborted, ctx.Err())
		case l, ok := <-r.lines:
			if !ok {
				return capture.Utterance{}, io.EOF
			}
			if l.err != nil {
				return capture.Utterance{}, capture.NewError(capture.ErrAudioCapture, l.err)
			}
			u, skip, err := r.parse(l.text)
			if skip {
				continue
			}
			return u, err
		}
	}
}

// parse turns one line into an utterance. skip is true for blank lines.
func (r *Recognizer) parse(raw string) (u capture.Utterance, skip bool, err error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return capture.Utterance{}, true, nil
	}
	if code, ok := strings.CutPrefix(text, "!"); ok {
		return capture.Utterance{}, false, capture.NewError(capture.ParseErrorCode(code), nil)
	}

	conf := r.defaultConfidence
	if transcript, confStr, found := strings.Cut(text, "\t"); found {
		c, perr := strconv.ParseFloat(strings.TrimSpace(confStr), 64)
		if perr != nil {
			return capture.Utterance{}, false, capture.NewError(capture.ErrUnknown,
				fmt.Errorf("line: parse confidence %q: %w", confStr, perr))
		}
		text, conf = strings.TrimSpace(transcript), c
	}

	u = capture.Utterance{Transcript: text, Confidence: conf, At: r.now()}
	if err := u.Validate(); err != nil {
		return capture.Utterance{}, false, capture.NewError(capture.ErrUnknown, err)
	}
	return u, false, nil
}

// IsEOF reports whether err signals that the input is exhausted.
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
