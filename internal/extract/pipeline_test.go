package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"text-extractor/internal/clipboard"
)

// fakeRunner simulates command execution outcomes.
type fakeRunner struct {
	calls int
	run   func(ctx context.Context, name string, args ...string) (commandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	f.calls++
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

// fakeClipboard is an in-memory clipboard with one optional image.
type fakeClipboard struct {
	result  clipboard.ImageResult
	text    string
	writes  int
	reads   int
	writeFn func(string) error
}

func (c *fakeClipboard) ReadImage(ctx context.Context) <-chan clipboard.ImageResult {
	c.reads++
	out := make(chan clipboard.ImageResult, 1)
	out <- c.result
	return out
}

func (c *fakeClipboard) WriteText(text string) error {
	c.writes++
	if c.writeFn != nil {
		if err := c.writeFn(text); err != nil {
			return err
		}
	}
	c.text = text
	return nil
}

// tempRecorder wraps os.CreateTemp and remembers created paths.
type tempRecorder struct {
	dir   string
	paths []string
}

func (r *tempRecorder) createTemp(dir, pattern string) (*os.File, error) {
	f, err := os.CreateTemp(r.dir, pattern)
	if err == nil {
		r.paths = append(r.paths, f.Name())
	}
	return f, err
}

func foundOnPath(name string) (string, error) { return "/usr/bin/" + name, nil }

func notOnPath(string) (string, error) { return "", errors.New("executable file not found in $PATH") }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func imageClipboard(t *testing.T) *fakeClipboard {
	t.Helper()
	data := pngBytes(t, 10, 10)
	return &fakeClipboard{
		text:   "previous",
		result: clipboard.ImageResult{Image: clipboard.ImagePayload{Data: data, Width: 10, Height: 10}},
	}
}

func newTestPipeline(t *testing.T, clip *fakeClipboard, runner *fakeRunner, lookPath func(string) (string, error), temps *tempRecorder) *Pipeline {
	t.Helper()
	return NewPipelineForTests(
		Options{
			OCRCommand: "tesseract",
			Languages:  []string{"eng", "tur", "aze", "jpn"},
			Timeout:    time.Second,
			Logger:     zerolog.Nop(),
		},
		clip,
		clip,
		runner,
		lookPath,
		temps.createTemp,
		os.Remove,
	)
}

func assertRemoved(t *testing.T, paths []string) {
	t.Helper()
	for _, path := range paths {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("temp file %s should be removed, stat err = %v", path, err)
		}
	}
}

func requireKind(t *testing.T, err error, want ErrorKind) *PipelineError {
	t.Helper()
	var pErr *PipelineError
	if !errors.As(err, &pErr) {
		t.Fatalf("error type = %T (%v), want *PipelineError", err, err)
	}
	if pErr.Kind != want {
		t.Fatalf("kind = %s, want %s (%v)", pErr.Kind, want, err)
	}
	return pErr
}

// TestPipelineRunSuccessCopiesTrimmedText checks recognized text reaches the clipboard trimmed.
func TestPipelineRunSuccessCopiesTrimmedText(t *testing.T) {
	clip := imageClipboard(t)
	temps := &tempRecorder{dir: t.TempDir()}
	var gotName string
	var gotArgs []string
	var written []byte
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		gotName = name
		gotArgs = append([]string{}, args...)
		data, err := os.ReadFile(args[0])
		if err != nil {
			t.Fatalf("temp file missing during OCR: %v", err)
		}
		written = data
		return commandResult{Stdout: []byte("HELLO\n")}, nil
	}}

	var stages []Stage
	var logs []CommandLog
	result, err := newTestPipeline(t, clip, runner, foundOnPath, temps).Run(context.Background(), Request{
		OnStage: func(stage Stage) { stages = append(stages, stage) },
		OnLog:   func(log CommandLog) { logs = append(logs, log) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Text != "HELLO" || clip.text != "HELLO" {
		t.Fatalf("text = %q, clipboard = %q, want HELLO", result.Text, clip.text)
	}
	if gotName != "tesseract" {
		t.Fatalf("command = %q, want tesseract", gotName)
	}
	wantArgs := []string{temps.paths[0], "stdout", "-l", "eng+tur+aze+jpn"}
	if strings.Join(gotArgs, "|") != strings.Join(wantArgs, "|") {
		t.Fatalf("args = %v, want %v", gotArgs, wantArgs)
	}
	if !bytes.Equal(written, clip.result.Image.Data) {
		t.Fatal("temp file content differs from clipboard payload")
	}
	if !strings.HasPrefix(filepath.Base(temps.paths[0]), "text-extractor-") || filepath.Ext(temps.paths[0]) != ".png" {
		t.Fatalf("unexpected temp name %s", temps.paths[0])
	}
	wantStages := []Stage{StageChecking, StageReading, StageWriting, StageRecognizing, StageCopying}
	if len(stages) != len(wantStages) {
		t.Fatalf("stages = %v, want %v", stages, wantStages)
	}
	for i := range wantStages {
		if stages[i] != wantStages[i] {
			t.Fatalf("stages = %v, want %v", stages, wantStages)
		}
	}
	if len(logs) != 1 || logs[0].Stdout != "HELLO\n" {
		t.Fatalf("logs = %+v", logs)
	}
	assertRemoved(t, temps.paths)
}

// TestPipelineRunEmptyOutputLeavesClipboard checks empty OCR output leaves the clipboard untouched.
func TestPipelineRunEmptyOutputLeavesClipboard(t *testing.T) {
	clip := imageClipboard(t)
	temps := &tempRecorder{dir: t.TempDir()}
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		return commandResult{Stdout: []byte("")}, nil
	}}

	_, err := newTestPipeline(t, clip, runner, foundOnPath, temps).Run(context.Background(), Request{})
	pErr := requireKind(t, err, KindOCREmptyOutput)
	if !strings.Contains(strings.ToLower(pErr.UserMessage()), "no text found in image") {
		t.Fatalf("message = %q", pErr.UserMessage())
	}
	if clip.writes != 0 || clip.text != "previous" {
		t.Fatalf("clipboard changed: writes=%d text=%q", clip.writes, clip.text)
	}
	assertRemoved(t, temps.paths)
}

// TestPipelineRunWhitespaceOutputIsDistinct checks trimming to empty.
func TestPipelineRunWhitespaceOutputIsDistinct(t *testing.T) {
	clip := imageClipboard(t)
	temps := &tempRecorder{dir: t.TempDir()}
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		return commandResult{Stdout: []byte(" \n\t\f\n")}, nil
	}}

	_, err := newTestPipeline(t, clip, runner, foundOnPath, temps).Run(context.Background(), Request{})
	pErr := requireKind(t, err, KindOCREmptyOutput)
	if pErr.Message != "No text found in image" {
		t.Fatalf("message = %q", pErr.Message)
	}
	if clip.writes != 0 {
		t.Fatal("empty text must not be written")
	}
	assertRemoved(t, temps.paths)
}

// TestPipelineRunNoImage checks a clipboard without an image never reaches OCR.
func TestPipelineRunNoImage(t *testing.T) {
	clip := &fakeClipboard{result: clipboard.ImageResult{Err: clipboard.ErrNoContent}}
	temps := &tempRecorder{dir: t.TempDir()}
	runner := &fakeRunner{}

	_, err := newTestPipeline(t, clip, runner, foundOnPath, temps).Run(context.Background(), Request{})
	pErr := requireKind(t, err, KindClipboardEmpty)
	if pErr.UserMessage() != "No image data found" {
		t.Fatalf("message = %q", pErr.UserMessage())
	}
	if len(temps.paths) != 0 || runner.calls != 0 {
		t.Fatalf("temp files = %v, runner calls = %d", temps.paths, runner.calls)
	}
}

// TestPipelineRunClipboardFailuresAreDistinct maps each read failure.
func TestPipelineRunClipboardFailuresAreDistinct(t *testing.T) {
	cases := []struct {
		err     error
		kind    ErrorKind
		message string
	}{
		{clipboard.ErrEmptyData, KindClipboardEmpty, "Image data is empty"},
		{clipboard.ErrMalformed, KindClipboardMalformed, "Invalid image format"},
		{clipboard.ErrUnavailable, KindClipboardUnavailable, "Clipboard error"},
	}
	for _, tc := range cases {
		clip := &fakeClipboard{result: clipboard.ImageResult{Err: tc.err}}
		temps := &tempRecorder{dir: t.TempDir()}

		_, err := newTestPipeline(t, clip, &fakeRunner{}, foundOnPath, temps).Run(context.Background(), Request{})
		pErr := requireKind(t, err, tc.kind)
		if pErr.Message != tc.message {
			t.Fatalf("%v: message = %q, want %q", tc.err, pErr.Message, tc.message)
		}
		if len(temps.paths) != 0 {
			t.Fatalf("%v: temp file created", tc.err)
		}
	}
}

// TestPipelineRunOCRMissing checks a missing OCR tool stops before the clipboard is read.
func TestPipelineRunOCRMissing(t *testing.T) {
	clip := imageClipboard(t)
	temps := &tempRecorder{dir: t.TempDir()}
	runner := &fakeRunner{}

	_, err := newTestPipeline(t, clip, runner, notOnPath, temps).Run(context.Background(), Request{})
	pErr := requireKind(t, err, KindPrereqMissing)
	if !strings.Contains(pErr.UserMessage(), "apt install tesseract-ocr") {
		t.Fatalf("message = %q", pErr.UserMessage())
	}
	if clip.reads != 0 || clip.writes != 0 {
		t.Fatalf("clipboard touched: reads=%d writes=%d", clip.reads, clip.writes)
	}
	if len(temps.paths) != 0 || runner.calls != 0 {
		t.Fatalf("temp files = %v, runner calls = %d", temps.paths, runner.calls)
	}
}

// TestPipelineRunNonZeroExitIncludesStderr checks a failing exit status is reported with stderr.
func TestPipelineRunNonZeroExitIncludesStderr(t *testing.T) {
	clip := imageClipboard(t)
	temps := &tempRecorder{dir: t.TempDir()}
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		return commandResult{Stderr: []byte("Failed loading language 'aze'\n"), ExitCode: 1}, errors.New("exit status 1")
	}}

	_, err := newTestPipeline(t, clip, runner, foundOnPath, temps).Run(context.Background(), Request{})
	pErr := requireKind(t, err, KindOCRNonZeroExit)
	if !strings.Contains(pErr.UserMessage(), "Failed loading language 'aze'") {
		t.Fatalf("message = %q", pErr.UserMessage())
	}
	if !strings.Contains(pErr.UserMessage(), "status 1") {
		t.Fatalf("message = %q", pErr.UserMessage())
	}
	if pErr.CommandLog.ExitCode != 1 {
		t.Fatalf("exit code = %d", pErr.CommandLog.ExitCode)
	}
	assertRemoved(t, temps.paths)
}

// TestPipelineRunSpawnFailure checks a process that never starts is reported as an exec failure.
func TestPipelineRunSpawnFailure(t *testing.T) {
	clip := imageClipboard(t)
	temps := &tempRecorder{dir: t.TempDir()}
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		return commandResult{ExitCode: -1}, errors.New("fork/exec /usr/bin/tesseract: permission denied")
	}}

	_, err := newTestPipeline(t, clip, runner, foundOnPath, temps).Run(context.Background(), Request{})
	requireKind(t, err, KindOCRExecFailure)
	assertRemoved(t, temps.paths)
}

// TestPipelineRunTimeoutKillsAndCleansUp checks the bounded OCR call.
func TestPipelineRunTimeoutKillsAndCleansUp(t *testing.T) {
	clip := imageClipboard(t)
	temps := &tempRecorder{dir: t.TempDir()}
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		<-ctx.Done()
		return commandResult{ExitCode: -1}, errors.New("signal: killed")
	}}

	pipeline := newTestPipeline(t, clip, runner, foundOnPath, temps)
	pipeline.timeout = 20 * time.Millisecond

	_, err := pipeline.Run(context.Background(), Request{})
	pErr := requireKind(t, err, KindOCRTimeout)
	if !errors.Is(pErr, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded in chain, got %v", pErr.Err)
	}
	assertRemoved(t, temps.paths)
}

// TestPipelineRunCancelled reports cancellation rather than timeout.
func TestPipelineRunCancelled(t *testing.T) {
	clip := imageClipboard(t)
	temps := &tempRecorder{dir: t.TempDir()}
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{run: func(runCtx context.Context, name string, args ...string) (commandResult, error) {
		cancel()
		<-runCtx.Done()
		return commandResult{ExitCode: -1}, errors.New("signal: killed")
	}}

	_, err := newTestPipeline(t, clip, runner, foundOnPath, temps).Run(ctx, Request{})
	requireKind(t, err, KindCancelled)
	assertRemoved(t, temps.paths)
}

// TestPipelineRunCleanupFailureDoesNotFailSuccess checks CleanupFailure.
func TestPipelineRunCleanupFailureDoesNotFailSuccess(t *testing.T) {
	clip := imageClipboard(t)
	temps := &tempRecorder{dir: t.TempDir()}
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		return commandResult{Stdout: []byte("text")}, nil
	}}

	pipeline := newTestPipeline(t, clip, runner, foundOnPath, temps)
	removeCalls := 0
	pipeline.remove = func(string) error {
		removeCalls++
		return errors.New("device busy")
	}

	result, err := pipeline.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Text != "text" || removeCalls != 1 {
		t.Fatalf("text = %q, remove calls = %d", result.Text, removeCalls)
	}
}

// TestPipelineRunTempWriteFailureRemovesFile checks IoFailure.
func TestPipelineRunTempWriteFailureRemovesFile(t *testing.T) {
	clip := imageClipboard(t)
	dir := t.TempDir()
	var created string
	runner := &fakeRunner{}

	pipeline := NewPipelineForTests(
		Options{Logger: zerolog.Nop()},
		clip,
		clip,
		runner,
		foundOnPath,
		func(_, pattern string) (*os.File, error) {
			created = filepath.Join(dir, strings.Replace(pattern, "*", "fixed", 1))
			if err := os.WriteFile(created, nil, 0o600); err != nil {
				return nil, err
			}
			// read-only handle makes Write fail
			return os.Open(created)
		},
		os.Remove,
	)

	_, err := pipeline.Run(context.Background(), Request{})
	pErr := requireKind(t, err, KindIOFailure)
	if pErr.UserMessage() != "Failed to process image" {
		t.Fatalf("message = %q", pErr.UserMessage())
	}
	if runner.calls != 0 {
		t.Fatal("OCR must not run after temp write failure")
	}
	assertRemoved(t, []string{created})
}

// TestPipelineRunTempCreateFailure checks IoFailure without a file.
func TestPipelineRunTempCreateFailure(t *testing.T) {
	clip := imageClipboard(t)
	pipeline := NewPipelineForTests(
		Options{Logger: zerolog.Nop()},
		clip,
		clip,
		&fakeRunner{},
		foundOnPath,
		func(string, string) (*os.File, error) { return nil, os.ErrPermission },
		os.Remove,
	)

	_, err := pipeline.Run(context.Background(), Request{})
	pErr := requireKind(t, err, KindIOFailure)
	if !errors.Is(pErr, os.ErrPermission) {
		t.Fatalf("expected ErrPermission in chain: %v", err)
	}
}

// TestWriteTempFileRoundTrip checks payload fidelity for several sizes.
func TestWriteTempFileRoundTrip(t *testing.T) {
	temps := &tempRecorder{dir: t.TempDir()}
	pipeline := newTestPipeline(t, &fakeClipboard{}, &fakeRunner{}, foundOnPath, temps)

	for _, size := range []int{1, 7, 4096, 1 << 20} {
		payload := bytes.Repeat([]byte{0x89, 'P', 0x00, 0xff}, size/4+1)[:size]
		path, err := pipeline.writeTempFile(payload, "png")
		if err != nil {
			t.Fatalf("writeTempFile(%d) error = %v", size, err)
		}
		if !filepath.IsAbs(path) {
			t.Fatalf("path %s is not absolute", path)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read back: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("size %d: content mismatch", size)
		}
	}
	if len(temps.paths) != 4 {
		t.Fatalf("created %d files, want 4 unique", len(temps.paths))
	}
}

// TestWriteClipboardFailureIsIOFailure checks the final stage.
func TestWriteClipboardFailureIsIOFailure(t *testing.T) {
	clip := imageClipboard(t)
	clip.writeFn = func(string) error { return clipboard.ErrUnavailable }
	temps := &tempRecorder{dir: t.TempDir()}
	runner := &fakeRunner{run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
		return commandResult{Stdout: []byte("HELLO")}, nil
	}}

	_, err := newTestPipeline(t, clip, runner, foundOnPath, temps).Run(context.Background(), Request{})
	pErr := requireKind(t, err, KindIOFailure)
	if pErr.Stage != StageCopying {
		t.Fatalf("stage = %s, want copying", pErr.Stage)
	}
	assertRemoved(t, temps.paths)
}

// TestBuildOCRArgs verifies deterministic OCR command arguments.
func TestBuildOCRArgs(t *testing.T) {
	args := buildOCRArgs("/tmp/a b.png", []string{"eng", "jpn"})
	want := []string{"/tmp/a b.png", "stdout", "-l", "eng+jpn"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}

	if got := buildOCRArgs("/x.png", nil); len(got) != 2 {
		t.Fatalf("no languages should omit -l: %v", got)
	}
}

// TestCommandLogStringQuotesPaths keeps debug output copy-pasteable.
func TestCommandLogStringQuotesPaths(t *testing.T) {
	log := CommandLog{Command: "tesseract", Args: []string{"/tmp/a b.png", "stdout"}}
	if got := log.String(); got != `tesseract "/tmp/a b.png" stdout` {
		t.Fatalf("String() = %s", got)
	}
}

// TestOCRAvailableRequiresResolvedPath checks the presence check.
func TestOCRAvailableRequiresResolvedPath(t *testing.T) {
	temps := &tempRecorder{dir: t.TempDir()}
	p := newTestPipeline(t, &fakeClipboard{}, &fakeRunner{}, func(string) (string, error) { return "  ", nil }, temps)
	if p.OCRAvailable() {
		t.Fatal("blank path must count as unavailable")
	}
	p.lookPath = foundOnPath
	if !p.OCRAvailable() {
		t.Fatal("expected available")
	}
}
