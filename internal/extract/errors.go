package extract

import (
	"fmt"
)

// Stage names one step of the extraction state machine.
type Stage string

const (
	StageChecking    Stage = "checking"
	StageReading     Stage = "reading"
	StageWriting     Stage = "writing"
	StageRecognizing Stage = "recognizing"
	StageCopying     Stage = "copying"
)

// ErrorKind classifies pipeline failures. Every kind maps to one user-facing
// notification; none of them is fatal to the host.
type ErrorKind string

const (
	KindPrereqMissing        ErrorKind = "prereq_missing"
	KindClipboardUnavailable ErrorKind = "clipboard_unavailable"
	KindClipboardEmpty       ErrorKind = "clipboard_empty"
	KindClipboardMalformed   ErrorKind = "clipboard_malformed"
	KindIOFailure            ErrorKind = "io_failure"
	KindOCRExecFailure       ErrorKind = "ocr_exec_failure"
	KindOCRNonZeroExit       ErrorKind = "ocr_nonzero_exit"
	KindOCREmptyOutput       ErrorKind = "ocr_empty_output"
	KindOCRTimeout           ErrorKind = "ocr_timeout"
	KindCancelled            ErrorKind = "cancelled"
)

// InstallHint is shown when the OCR executable cannot be located.
const InstallHint = "Please install Tesseract OCR: sudo apt install tesseract-ocr"

// PipelineError is a stage-aware error with optional command context.
type PipelineError struct {
	Stage      Stage      `json:"stage"`
	Kind       ErrorKind  `json:"kind"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats pipeline failures for logs.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage is the notification text for this failure.
func (e *PipelineError) UserMessage() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindOCRExecFailure, KindOCRNonZeroExit, KindOCREmptyOutput, KindOCRTimeout:
		return "OCR Error: " + e.Message
	default:
		return e.Message
	}
}
