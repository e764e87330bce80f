package capture

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a recognition failure.
type ErrorCode string

const (
	// ErrNoSpeech means nothing was said before the recogniser gave up.
	ErrNoSpeech ErrorCode = "no-speech"

	// ErrAudioCapture means the microphone could not be read.
	ErrAudioCapture ErrorCode = "audio-capture"

	// ErrPermissionDenied means the user or platform refused microphone access.
	ErrPermissionDenied ErrorCode = "permission-denied"

	// ErrNetwork means a remote recognition service could not be reached.
	ErrNetwork ErrorCode = "network"

	// ErrUnsupported means the platform has no speech recognition.
	ErrUnsupported ErrorCode = "unsupported"

	// ErrServiceUnavailable means the recognition service refused the request.
	ErrServiceUnavailable ErrorCode = "service-unavailable"

	// ErrAborted means recognition was cancelled before it completed.
	ErrAborted ErrorCode = "aborted"

	// ErrUnknown is any other failure.
	ErrUnknown ErrorCode = "unknown"
)

// browserCodes maps Web Speech API error names onto codes.
var browserCodes = map[string]ErrorCode{
	"no-speech":           ErrNoSpeech,
	"audio-capture":       ErrAudioCapture,
	"not-allowed":         ErrPermissionDenied,
	"permission-denied":   ErrPermissionDenied,
	"network":             ErrNetwork,
	"not-supported":       ErrUnsupported,
	"unsupported":         ErrUnsupported,
	"service-not-allowed": ErrServiceUnavailable,
	"service-unavailable": ErrServiceUnavailable,
	"aborted":             ErrAborted,
}

// ParseErrorCode maps an error name, including the Web Speech API names such
// as "not-allowed", onto an [ErrorCode]. Unrecognised names yield [ErrUnknown].
func ParseErrorCode(name string) ErrorCode {
	if c, ok := browserCodes[name]; ok {
		return c
	}
	return ErrUnknown
}

// messages are the feedback strings shown to the children, in Arabic.
var messages = map[ErrorCode]string{
	ErrNoSpeech:           "لم يتم الكشف عن كلام. حاول التحدث بصوت أعلى",
	ErrAudioCapture:       "لا يمكن الوصول إلى الميكروفون",
	ErrPermissionDenied:   "تم رفض الإذن باستخدام الميكروفون. يرجى السماح باستخدام الميكروفون",
	ErrNetwork:            "خطأ في الشبكة. تحقق من اتصال الإنترنت",
	ErrUnsupported:        "المتصفح لا يدعم هذه الميزة",
	ErrServiceUnavailable: "خدمة التعرف على الصوت غير متاحة",
}

const unknownMessage = "خطأ غير معروف"

// Message returns the user-facing feedback for code.
func (c ErrorCode) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return unknownMessage
}

// Error is a recognition failure.
type Error struct {
	Code ErrorCode
	Err  error
}

// NewError returns an [*Error] for code with an optional cause.
func NewError(code ErrorCode, cause error) *Error {
	return &Error{Code: code, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture: %s: %v", e.Code, e.Err)
	}
	return "capture: " + string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the user-facing feedback for the failure.
func (e *Error) Message() string { return e.Code.Message() }

// Is reports whether target is an [*Error] with the same code, so that
// errors.Is(err, capture.NewError(capture.ErrNoSpeech, nil)) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the [ErrorCode] of err, or the empty code for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(Classify(err), &ce) {
		return ce.Code
	}
	return ErrUnknown
}
