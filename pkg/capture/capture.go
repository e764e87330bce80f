// Package capture defines the boundary between speech recognition and voice
// identification.
//
// A [Recognizer] performs one single-shot recognition: it listens for one
// utterance and resolves to either an [Utterance] (transcript plus the
// recogniser's confidence) or an [*Error] carrying an [ErrorCode]. The
// identification core never starts or manages recognition itself; it only
// consumes resolved utterances. Callers must not enrol or identify when
// recognition failed. They map the error to user feedback instead (see
// [Error.Message]).
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Utterance is one completed recognition.
type Utterance struct {
	// Transcript is the recognised text of the best alternative.
	Transcript string

	// Confidence is the recogniser's confidence in [0, 1].
	Confidence float64

	// At is when the utterance was recognised.
	At time.Time
}

// Recognizer captures one utterance. Recognize blocks until the utterance is
// recognised, recognition fails, or ctx is cancelled. Errors should be
// reported as [*Error] values so that callers can map them to feedback.
//
// Implementations must be safe for concurrent use, although the app never
// runs two recognitions at once.
type Recognizer interface {
	Recognize(ctx context.Context) (Utterance, error)
}

// Result is the resolved value of a recognition started with [Start].
type Result struct {
	Utterance Utterance
	Err       error
}

// Start runs r.Recognize in a new goroutine. The returned channel delivers
// exactly one [Result] and is then closed. Cancelling ctx cancels the
// recognition; the result then carries an [ErrAborted] error.
func Start(ctx context.Context, r Recognizer) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		u, err := r.Recognize(ctx)
		if err != nil {
			out <- Result{Err: Classify(err)}
			return
		}
		out <- Result{Utterance: u}
	}()
	return out
}

// Await waits for the single result of ch, or for ctx to end.
func Await(ctx context.Context, ch <-chan Result) (Utterance, error) {
	select {
	case res, ok := <-ch:
		if !ok {
			return Utterance{}, &Error{Code: ErrAborted, Err: errors.New("result channel closed")}
		}
		return res.Utterance, res.Err
	case <-ctx.Done():
		return Utterance{}, &Error{Code: ErrAborted, Err: ctx.Err()}
	}
}

// Classify converts err into an [*Error]. Errors that already are (or wrap)
// an [*Error] keep their code; context cancellation becomes [ErrAborted];
// anything else is [ErrUnknown].
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: ErrAborted, Err: err}
	}
	return &Error{Code: ErrUnknown, Err: err}
}

// Validate checks that u is usable: non-NaN confidence in [0, 1].
func (u Utterance) Validate() error {
	if !(u.Confidence >= 0 && u.Confidence <= 1) {
		return fmt.Errorf("capture: confidence %v out of range [0, 1]", u.Confidence)
	}
	return nil
}
