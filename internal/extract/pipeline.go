// Package extract runs the clipboard -> OCR -> clipboard pipeline.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"text-extractor/internal/clipboard"
)

// DefaultTimeout bounds one OCR subprocess when Options.Timeout is unset.
const DefaultTimeout = 30 * time.Second

const tempFilePrefix = "text-extractor-"

// ImageReader delivers one clipboard image read asynchronously.
type ImageReader interface {
	ReadImage(ctx context.Context) <-chan clipboard.ImageResult
}

// TextWriter replaces the clipboard text.
type TextWriter interface {
	WriteText(text string) error
}

// Options configures the OCR command and its environment.
type Options struct {
	OCRCommand string
	Languages  []string
	Timeout    time.Duration
	TempDir    string
	Logger     zerolog.Logger
}

// Request carries per-invocation callbacks.
type Request struct {
	OnStage func(stage Stage)
	OnLog   func(log CommandLog)
}

// Result is a successful extraction.
type Result struct {
	Text        string
	ImageWidth  int
	ImageHeight int
	CommandLog  CommandLog
}

// Pipeline orchestrates one extraction. It holds no per-invocation state, so
// concurrent Runs never share a temp file; serialising clicks is the caller's job.
type Pipeline struct {
	ocrPath    string
	languages  []string
	timeout    time.Duration
	tempDir    string
	reader     ImageReader
	writer     TextWriter
	runner     commandRunner
	lookPath   func(file string) (string, error)
	createTemp func(dir, pattern string) (*os.File, error)
	remove     func(name string) error
	log        zerolog.Logger
}

// NewPipeline constructs the production pipeline with OS dependencies.
func NewPipeline(opts Options, reader ImageReader, writer TextWriter) *Pipeline {
	return NewPipelineForTests(opts, reader, writer, &execRunner{}, exec.LookPath, os.CreateTemp, os.Remove)
}

// Run executes the state machine CHECK_OCR -> READ_CLIPBOARD -> WRITE_TEMP ->
// RUN_OCR -> WRITE_CLIPBOARD. Any failure ends the run with a *PipelineError.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	p.log.Debug().Msg("starting text extraction from clipboard")

	emitStage(req.OnStage, StageChecking)
	if !p.OCRAvailable() {
		p.log.Error().Str("command", p.ocrPath).Msg("ocr executable not found")
		return Result{}, &PipelineError{
			Stage:   StageChecking,
			Kind:    KindPrereqMissing,
			Message: InstallHint,
		}
	}

	emitStage(req.OnStage, StageReading)
	image, err := p.readClipboard(ctx)
	if err != nil {
		return Result{}, err
	}
	p.log.Debug().Int("bytes", len(image.Data)).Int("width", image.Width).Int("height", image.Height).Msg("clipboard image received")

	emitStage(req.OnStage, StageWriting)
	path, err := p.writeTempFile(image.Data, "png")
	if err != nil {
		p.log.Error().Err(err).Msg("temp file creation failed")
		return Result{}, &PipelineError{
			Stage:   StageWriting,
			Kind:    KindIOFailure,
			Message: "Failed to process image",
			Err:     err,
		}
	}
	p.log.Debug().Str("path", path).Msg("temp file created")

	emitStage(req.OnStage, StageRecognizing)
	text, log, err := p.runOCR(ctx, path)
	emitLog(req.OnLog, log)
	if err != nil {
		p.log.Error().Err(err).Msg("ocr failed")
		return Result{}, err
	}

	emitStage(req.OnStage, StageCopying)
	if err := p.writer.WriteText(text); err != nil {
		return Result{}, &PipelineError{
			Stage:      StageCopying,
			Kind:       KindIOFailure,
			Message:    "Failed to process image",
			CommandLog: log,
			Err:        err,
		}
	}
	p.log.Debug().Int("chars", len(text)).Msg("text copied to clipboard")

	return Result{
		Text:        text,
		ImageWidth:  image.Width,
		ImageHeight: image.Height,
		CommandLog:  log,
	}, nil
}

// OCRAvailable reports whether the OCR executable resolves on PATH.
func (p *Pipeline) OCRAvailable() bool {
	path, err := p.lookPath(p.ocrPath)
	return err == nil && strings.TrimSpace(path) != ""
}

// readClipboard waits for the async clipboard read or ctx, whichever is first.
func (p *Pipeline) readClipboard(ctx context.Context) (clipboard.ImagePayload, error) {
	p.log.Debug().Str("mime", clipboard.MIMEImagePNG).Msg("requesting clipboard image")

	var res clipboard.ImageResult
	select {
	case res = <-p.reader.ReadImage(ctx):
	case <-ctx.Done():
		res.Err = ctx.Err()
	}
	if res.Err == nil {
		return res.Image, nil
	}

	pErr := &PipelineError{Stage: StageReading, Err: res.Err}
	switch {
	case errors.Is(res.Err, clipboard.ErrNoContent):
		pErr.Kind, pErr.Message = KindClipboardEmpty, "No image data found"
	case errors.Is(res.Err, clipboard.ErrEmptyData):
		pErr.Kind, pErr.Message = KindClipboardEmpty, "Image data is empty"
	case errors.Is(res.Err, clipboard.ErrMalformed):
		pErr.Kind, pErr.Message = KindClipboardMalformed, "Invalid image format"
	case errors.Is(res.Err, context.Canceled), errors.Is(res.Err, context.DeadlineExceeded):
		pErr.Kind, pErr.Message = KindCancelled, "Extraction cancelled"
	default:
		pErr.Kind, pErr.Message = KindClipboardUnavailable, "Clipboard error"
	}
	p.log.Error().Err(res.Err).Str("kind", string(pErr.Kind)).Msg("clipboard read failed")
	return clipboard.ImagePayload{}, pErr
}

// writeTempFile creates a uniquely named file (O_EXCL via os.CreateTemp),
// writes data and returns its absolute path. On failure the file is removed.
func (p *Pipeline) writeTempFile(data []byte, extension string) (string, error) {
	f, err := p.createTemp(p.tempDir, tempFilePrefix+"*."+extension)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		p.cleanup(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		p.cleanup(path)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		p.cleanup(path)
		return "", fmt.Errorf("resolve temp file path: %w", err)
	}
	return abs, nil
}

// runOCR invokes the OCR executable on path and always deletes path before
// classifying the outcome.
func (p *Pipeline) runOCR(ctx context.Context, path string) (string, CommandLog, error) {
	args := buildOCRArgs(path, p.languages)
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmdResult, runErr := p.runner.Run(runCtx, p.ocrPath, args...)
	log := CommandLog{
		Command:  p.ocrPath,
		Args:     args,
		ExitCode: cmdResult.ExitCode,
		Stdout:   string(cmdResult.Stdout),
		Stderr:   string(cmdResult.Stderr),
	}
	p.log.Debug().Str("command", log.String()).Int("status", log.ExitCode).Msg("ocr command completed")
	if len(cmdResult.Stderr) > 0 {
		p.log.Debug().Str("stderr", log.Stderr).Msg("ocr stderr")
	}

	p.cleanup(path)

	name := displayName(p.ocrPath)
	fail := func(kind ErrorKind, message string, err error) (string, CommandLog, error) {
		return "", log, &PipelineError{
			Stage:      StageRecognizing,
			Kind:       kind,
			Message:    message,
			CommandLog: log,
			Err:        err,
		}
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return fail(KindOCRTimeout, fmt.Sprintf("%s timed out after %s", name, p.timeout), context.DeadlineExceeded)
	case ctx.Err() != nil:
		return fail(KindCancelled, "Extraction cancelled", ctx.Err())
	case isSpawnFailure(cmdResult, runErr):
		return fail(KindOCRExecFailure, fmt.Sprintf("%s execution failed: %v", name, runErr), runErr)
	case runErr != nil || cmdResult.ExitCode != 0:
		detail := strings.TrimSpace(decodeUTF8(cmdResult.Stderr))
		if detail == "" {
			detail = name + " execution failed"
		}
		return fail(KindOCRNonZeroExit, fmt.Sprintf("%s failed with status %d: %s", name, cmdResult.ExitCode, detail), runErr)
	case len(cmdResult.Stdout) == 0:
		return fail(KindOCREmptyOutput, "No text found in image (no output from "+name+")", nil)
	}

	text := strings.TrimSpace(decodeUTF8(cmdResult.Stdout))
	if text == "" {
		return fail(KindOCREmptyOutput, "No text found in image", nil)
	}
	return text, log, nil
}

// cleanup removes path; failures are logged and never change the outcome.
func (p *Pipeline) cleanup(path string) {
	if err := p.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.log.Warn().Err(err).Str("path", path).Msg("failed to delete temp file")
		return
	}
	p.log.Debug().Str("path", path).Msg("deleted temp file")
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(stage Stage), stage Stage) {
	if cb != nil {
		cb(stage)
	}
}

// emitLog forwards command logs when callback is configured.
func emitLog(cb func(log CommandLog), log CommandLog) {
	if cb != nil && log.Command != "" {
		cb(log)
	}
}

// buildOCRArgs builds: <image> stdout -l lang1+lang2...
func buildOCRArgs(imagePath string, languages []string) []string {
	args := []string{imagePath, "stdout"}
	if len(languages) > 0 {
		args = append(args, "-l", strings.Join(languages, "+"))
	}
	return args
}

func decodeUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

func displayName(command string) string {
	base := filepath.Base(command)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		return command
	}
	if base == "tesseract" {
		return "Tesseract"
	}
	return base
}

// NewPipelineForTests constructs a pipeline with injectable dependencies.
func NewPipelineForTests(
	opts Options,
	reader ImageReader,
	writer TextWriter,
	runner commandRunner,
	lookPath func(string) (string, error),
	createTemp func(dir, pattern string) (*os.File, error),
	remove func(string) error,
) *Pipeline {
	ocrPath := strings.TrimSpace(opts.OCRCommand)
	if ocrPath == "" {
		ocrPath = "tesseract"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Pipeline{
		ocrPath:    ocrPath,
		languages:  append([]string(nil), opts.Languages...),
		timeout:    timeout,
		tempDir:    opts.TempDir,
		reader:     reader,
		writer:     writer,
		runner:     runner,
		lookPath:   lookPath,
		createTemp: createTemp,
		remove:     remove,
		log:        opts.Logger,
	}
}
