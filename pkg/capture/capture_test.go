package capture_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrWong99/voiceid/pkg/capture"
	"github.com/MrWong99/voiceid/pkg/capture/mock"
)

func TestStart_DeliversUtterance(t *testing.T) {
	t.Parallel()

	r := &mock.Recognizer{Results: []capture.Result{
		{Utterance: capture.Utterance{Transcript: "مرحبا", Confidence: 0.9}},
	}}

	u, err := capture.Await(context.Background(), capture.Start(context.Background(), r))
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if u.Transcript != "مرحبا" || u.Confidence != 0.9 {
		t.Errorf("utterance = %+v", u)
	}
}

func TestStart_ClassifiesErrors(t *testing.T) {
	t.Parallel()

	r := &mock.Recognizer{Results: []capture.Result{
		{Err: capture.NewError(capture.ErrNoSpeech, nil)},
		{Err: errors.New("boom")},
	}}
	ctx := context.Background()

	_, err := capture.Await(ctx, capture.Start(ctx, r))
	if got := capture.CodeOf(err); got != capture.ErrNoSpeech {
		t.Errorf("first code = %q, want %q", got, capture.ErrNoSpeech)
	}
	_, err = capture.Await(ctx, capture.Start(ctx, r))
	if got := capture.CodeOf(err); got != capture.ErrUnknown {
		t.Errorf("second code = %q, want %q", got, capture.ErrUnknown)
	}
}

func TestStart_Cancellation(t *testing.T) {
	t.Parallel()

	r := &mock.Recognizer{Block: true}
	ctx, cancel := context.WithCancel(context.Background())
	ch := capture.Start(ctx, r)
	cancel()

	select {
	case res := <-ch:
		if capture.CodeOf(res.Err) != capture.ErrAborted {
			t.Errorf("code = %q, want aborted", capture.CodeOf(res.Err))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recognition did not stop after cancellation")
	}

	if _, ok := <-ch; ok {
		t.Error("channel delivered more than one result")
	}
}

func TestAwait_ContextDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := capture.Await(ctx, make(chan capture.Result))
	if capture.CodeOf(err) != capture.ErrAborted {
		t.Errorf("code = %q, want aborted", capture.CodeOf(err))
	}
}

func TestParseErrorCode(t *testing.T) {
	t.Parallel()

	tests := map[string]capture.ErrorCode{
		"no-speech":           capture.ErrNoSpeech,
		"audio-capture":       capture.ErrAudioCapture,
		"not-allowed":         capture.ErrPermissionDenied,
		"network":             capture.ErrNetwork,
		"not-supported":       capture.ErrUnsupported,
		"service-not-allowed": capture.ErrServiceUnavailable,
		"bogus":               capture.ErrUnknown,
	}
	for name, want := range tests {
		if got := capture.ParseErrorCode(name); got != want {
			t.Errorf("ParseErrorCode(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", capture.NewError(capture.ErrAudioCapture, errors.New("device busy")))

	var ce *capture.Error
	if !errors.As(err, &ce) {
		t.Fatal("errors.As failed on wrapped capture error")
	}
	if ce.Message() != "لا يمكن الوصول إلى الميكروفون" {
		t.Errorf("Message() = %q", ce.Message())
	}
	if !errors.Is(err, capture.NewError(capture.ErrAudioCapture, nil)) {
		t.Error("errors.Is should match on code")
	}
	if capture.CodeOf(err) != capture.ErrAudioCapture {
		t.Errorf("CodeOf = %q", capture.CodeOf(err))
	}
	if capture.ErrorCode("whatever").Message() != "خطأ غير معروف" {
		t.Error("unknown codes should use the generic message")
	}
}

func TestUtterance_Validate(t *testing.T) {
	t.Parallel()

	if err := (capture.Utterance{Confidence: 0.5}).Validate(); err != nil {
		t.Errorf("Validate(0.5) = %v", err)
	}
	if err := (capture.Utterance{Confidence: 1.2}).Validate(); err == nil {
		t.Error("Validate(1.2) = nil, want error")
	}
}
