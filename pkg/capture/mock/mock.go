// Package mock provides a scripted [capture.Recognizer] for tests.
//
// Example:
//
//	r := &mock.Recognizer{Results: []capture.Result{
//	    {Utterance: capture.Utterance{Transcript: "مرحبا", Confidence: 0.9}},
//	    {Err: capture.NewError(capture.ErrNoSpeech, nil)},
//	}}
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/voiceid/pkg/capture"
)

var _ capture.Recognizer = (*Recognizer)(nil)

// Recognizer replays Results in order, one per Recognize call, and returns
// io.EOF once they are exhausted. When Block is true, Recognize waits for
// context cancellation instead.
type Recognizer struct {
	mu sync.Mutex

	// Results are returned in order.
	Results []capture.Result

	// Block makes Recognize wait for ctx to be cancelled.
	Block bool

	// Calls counts Recognize invocations.
	Calls int
}

// Recognize implements [capture.Recognizer].
func (r *Recognizer) Recognize(ctx context.Context) (capture.Utterance, error) {
	r.mu.Lock()
	r.Calls++
	block := r.Block
	var (
		next capture.Result
		ok   bool
	)
	if !block && len(r.Results) > 0 {
		next, r.Results, ok = r.Results[0], r.Results[1:], true
	}
	r.mu.Unlock()

	if block {
		<-ctx.Done()
		return capture.Utterance{}, ctx.Err()
	}
	if !ok {
		return capture.Utterance{}, io.EOF
	}
	return next.Utterance, next.Err
}
