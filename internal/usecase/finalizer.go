package usecase

import (
	"context"
	"log/slog"

	"dictakey/internal/domain"
	"dictakey/internal/ports"
)

const failurePrefix = "[dictation error] "

type transcriptFinalizer struct {
	rules    ports.RulesEngine
	injector ports.Injector
	logger   *slog.Logger
}

type finalized struct {
	text   string
	pasted bool
	reason domain.StateReason
	code   domain.ErrorCode
	detail string
}

func newTranscriptFinalizer(rules ports.RulesEngine, injector ports.Injector, logger *slog.Logger) transcriptFinalizer {
	return transcriptFinalizer{rules: rules, injector: injector, logger: logger}
}

// Finalize turns a transcription result into the episode transcript and
// pastes it. A failure is pasted as its description in place of a transcript.
func (f transcriptFinalizer) Finalize(ctx context.Context, result ports.TranscriptionResult) finalized {
	out := finalized{text: result.Text, reason: domain.ReasonTranscriptPasted}

	if result.Err != nil {
		out.text = failureText(result.Err)
		out.reason = domain.ReasonTranscriptionFailed
		out.code = domain.Code(result.Err)
		if out.code == "" {
			out.code = domain.ErrorCodeTranscriptionFailed
		}
		out.detail = result.Err.Error()
	} else if f.rules != nil {
		transformed, err := f.rules.Apply(result.Text)
		if err != nil {
			f.logger.Warn("substitution rules failed; pasting raw transcript", slog.String("error", err.Error()))
			out.code = domain.ErrorCodeRules
			out.detail = err.Error()
		} else {
			out.text = transformed
		}
	}

	if out.text == "" {
		out.reason = domain.ReasonNothingRecognized
		return out
	}

	if err := f.injector.Paste(ctx, out.text); err != nil {
		f.logger.Error("paste failed", slog.String("error", err.Error()))
		out.reason = domain.ReasonPasteFailed
		out.code = domain.ErrorCodePaste
		out.detail = err.Error()
		return out
	}
	out.pasted = true
	return out
}

func failureText(err error) string {
	return failurePrefix + err.Error()
}
