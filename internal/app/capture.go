package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/voiceid/internal/voiceid"
	"github.com/MrWong99/voiceid/internal/voiceid/match"
	"github.com/MrWong99/voiceid/pkg/capture"
)

// Mode selects what a captured utterance is used for.
type Mode int

const (
	// ModeIdentify matches the utterance against the enrolled profiles.
	ModeIdentify Mode = iota

	// ModeEnroll stores the utterance as a speaker's reference sample.
	ModeEnroll
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeIdentify:
		return "identify"
	case ModeEnroll:
		return "enroll"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Feedback strings shown to the children.
const (
	msgEnrolled       = "تم تدريب صوت %s بنجاح!"
	msgLowQuality     = "جودة الصوت منخفضة. حاول مرة أخرى بصوت أوضح"
	msgNotTrained     = "يرجى تدريب الأصوات أولاً"
	msgUnclear        = "لم أتمكن من التعرف على الصوت. حاول مرة أخرى بصوت أوضح"
	msgIdentified     = "تم التعرف عليك! مرحباً %s!"
	msgNotRecognised  = "لم أتعرف على الصوت. تأكد من التدريب أولاً"
	msgUnknownSpeaker = "هذا الاسم غير معروف"
)

// Outcome is the result of handling one capture.
type Outcome struct {
	Mode Mode

	// Profile is the stored profile after a successful enrolment.
	Profile voiceid.Profile

	// Result is the identification result. [match.Unknown] for enrolments.
	Result match.Result

	// Feedback is the message to show the user.
	Feedback string
}

// HandleCapture consumes the result of one capture task. Failed captures are
// counted and mapped to their feedback message without touching the
// profiles. speakerID is only used in [ModeEnroll].
//
// The returned error is the capture or enrolment error; an identification
// that found nobody is not an error.
func (a *App) HandleCapture(ctx context.Context, mode Mode, speakerID string, res capture.Result) (Outcome, error) {
	out := Outcome{Mode: mode}

	if res.Err != nil {
		code := capture.CodeOf(res.Err)
		a.metrics.RecordCaptureError(ctx, string(code))
		out.Feedback = code.Message()
		return out, res.Err
	}

	switch mode {
	case ModeEnroll:
		p, err := a.Enroll(ctx, speakerID, res.Utterance)
		switch {
		case errors.Is(err, voiceid.ErrInvalidSample):
			out.Feedback = msgLowQuality
			return out, err
		case errors.Is(err, voiceid.ErrUnknownSpeaker), errors.Is(err, voiceid.ErrEmptySpeakerID):
			out.Feedback = msgUnknownSpeaker
			return out, err
		case err != nil && p.SpeakerID == "":
			return out, err
		}
		out.Profile = p
		out.Feedback = fmt.Sprintf(msgEnrolled, a.Roster().DisplayName(p.SpeakerID))
		return out, err

	case ModeIdentify:
		out.Result = a.Identify(ctx, res.Utterance)
		switch {
		case out.Result.Identified:
			out.Feedback = fmt.Sprintf(msgIdentified, a.Roster().DisplayName(out.Result.SpeakerID))
		case !a.IsReady():
			out.Feedback = msgNotTrained
		case !(res.Utterance.Confidence >= a.Matcher().QualityFloor()):
			out.Feedback = msgUnclear
		default:
			out.Feedback = msgNotRecognised
		}
		return out, nil

	default:
		return out, fmt.Errorf("app: unknown mode %v", mode)
	}
}
