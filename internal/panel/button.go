// Package panel models the status-area button the host shell loads: a left
// click runs one extraction and reports it through a transient notification.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"text-extractor/internal/domain"
	"text-extractor/internal/extract"
	"text-extractor/internal/jobs"
	"text-extractor/internal/notify"
)

// SuccessMessage is shown after text reaches the clipboard.
const SuccessMessage = "Text successfully extracted"

// ErrDestroyed is returned when a destroyed button is triggered.
var ErrDestroyed = errors.New("button destroyed")

// MouseButton identifies the pressed pointer button.
type MouseButton int

const (
	MouseButtonPrimary   MouseButton = 1
	MouseButtonMiddle    MouseButton = 2
	MouseButtonSecondary MouseButton = 3
)

// ClickResult tells the host whether the event was consumed.
type ClickResult int

const (
	EventPropagate ClickResult = iota
	EventStop
)

// Runner isolates the extraction pipeline behind an interface.
type Runner interface {
	Run(ctx context.Context, req extract.Request) (extract.Result, error)
}

// ButtonOptions configures a Button.
type ButtonOptions struct {
	Label    string
	Pipeline Runner
	Sink     notify.Sink
	Delay    time.Duration
	Events   *jobs.EventBus
	OnEvent  func(jobs.Event)
	Logger   zerolog.Logger
}

// Button runs at most one extraction at a time and owns the notifier that
// reports each run.
type Button struct {
	label    string
	pipeline Runner
	notifier *notify.Notifier
	jobs     *jobs.Manager
	events   *jobs.EventBus
	onEvent  func(jobs.Event)
	log      zerolog.Logger
	newID    func() string

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	destroyed bool
}

// NewButton creates a button with its own notifier and invocation guard.
func NewButton(opts ButtonOptions) *Button {
	label := opts.Label
	if label == "" {
		label = "Extract"
	}
	events := opts.Events
	if events == nil {
		events = jobs.NewEventBus(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Button{
		label:    label,
		pipeline: opts.Pipeline,
		notifier: notify.New(opts.Sink, opts.Delay),
		jobs:     jobs.NewManager(),
		events:   events,
		onEvent:  opts.OnEvent,
		log:      opts.Logger,
		newID:    uuid.NewString,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Label is the text rendered on the panel.
func (b *Button) Label() string {
	return b.label
}

// Click handles a pointer press. Only the primary button triggers an
// extraction; everything else propagates to the host unmodified.
func (b *Button) Click(button MouseButton) ClickResult {
	if button != MouseButtonPrimary {
		return EventPropagate
	}

	if _, err := b.Trigger(); err != nil {
		b.log.Info().Err(err).Msg("click ignored")
	}
	return EventStop
}

// Trigger starts an extraction in the background and returns its ID. A click
// during a running extraction is rejected with jobs.ErrInvocationRunning.
func (b *Button) Trigger() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return "", ErrDestroyed
	}

	id := b.newID()
	if err := b.jobs.Start(id); err != nil {
		return "", err
	}
	b.publishStatus(id, domain.InvocationStatusChecking, "Extraction started")

	b.wg.Add(1)
	go b.run(b.ctx, id)
	return id, nil
}

// Wait blocks until the in-flight extraction, if any, has reported.
func (b *Button) Wait() {
	b.wg.Wait()
}

// Current returns the latest invocation snapshot.
func (b *Button) Current() domain.Invocation {
	return b.jobs.Current()
}

// Events returns retained events with sequence greater than since.
func (b *Button) Events(since int64) []jobs.Event {
	return b.events.Since(since)
}

// InvocationEvents returns the retained events of one invocation.
func (b *Button) InvocationEvents(id string) []jobs.Event {
	return b.events.ForInvocation(id)
}

// Notification returns the visible notification, if any.
func (b *Button) Notification() (domain.Notification, bool) {
	return b.notifier.Current()
}

// Destroy cancels a running extraction, waits for it, and dismisses the
// notification. Safe to call more than once.
func (b *Button) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	b.cancel()
	b.mu.Unlock()

	b.wg.Wait()
	b.notifier.Close()
}

// run executes the pipeline and maps its outcome to one notification.
func (b *Button) run(ctx context.Context, id string) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("invocation", id).Interface("panic", r).Msg("extraction panicked")
			b.finish(id, domain.InvocationStatusFailed, "Extraction failed")
			b.publishError(id, "", fmt.Sprint(r))
			b.notifier.Show("Error processing image", false)
		}
	}()

	log := b.log.With().Str("invocation", id).Logger()
	req := extract.Request{
		OnStage: func(stage extract.Stage) {
			status, ok := mapStageToStatus(stage)
			if !ok {
				return
			}
			if err := b.jobs.Transition(status); err != nil {
				b.log.Debug().Err(err).Str("invocation", id).Msg("stage not recorded")
				return
			}
			b.publishStatus(id, status, "Running "+string(stage)+" stage")
		},
		OnLog: func(cmd extract.CommandLog) {
			b.publishEvent(jobs.Event{
				InvocationID: id,
				Type:         jobs.EventTypeLog,
				Message:      "Command completed",
				Command:      cmd.Command,
				Args:         cmd.Args,
				ExitCode:     cmd.ExitCode,
				Stdout:       cmd.Stdout,
				Stderr:       cmd.Stderr,
			})
		},
	}

	result, err := b.pipeline.Run(ctx, req)
	if err != nil {
		var pErr *extract.PipelineError
		if !errors.As(err, &pErr) {
			pErr = &extract.PipelineError{Kind: extract.KindIOFailure, Message: "Failed to process image", Err: err}
		}

		if pErr.Kind == extract.KindCancelled || errors.Is(err, context.Canceled) {
			b.finish(id, domain.InvocationStatusCancelled, "Extraction cancelled")
			log.Info().Msg("extraction cancelled")
			return
		}

		b.finish(id, domain.InvocationStatusFailed, "Extraction failed")
		b.publishError(id, string(pErr.Kind), pErr.UserMessage())
		log.Warn().Str("kind", string(pErr.Kind)).Err(err).Msg("extraction failed")
		b.notifier.Show(pErr.UserMessage(), false)
		return
	}

	b.finish(id, domain.InvocationStatusSucceeded, "Extraction completed")
	b.publishEvent(jobs.Event{
		InvocationID: id,
		Type:         jobs.EventTypeResult,
		Status:       domain.InvocationStatusSucceeded,
		Message:      SuccessMessage,
		Text:         result.Text,
		ImageWidth:   result.ImageWidth,
		ImageHeight:  result.ImageHeight,
	})
	log.Info().Int("chars", len(result.Text)).Int("width", result.ImageWidth).Int("height", result.ImageHeight).Msg("extraction succeeded")
	b.notifier.Show(SuccessMessage, true)
}

// finish releases the busy guard with a terminal status and reports it.
func (b *Button) finish(id string, status domain.InvocationStatus, message string) {
	if err := b.jobs.Finish(status); err != nil {
		b.log.Error().Err(err).Str("invocation", id).Str("status", string(status)).Msg("finish invocation")
		return
	}
	b.publishStatus(id, status, message)
}

func (b *Button) publishStatus(id string, status domain.InvocationStatus, message string) {
	b.publishEvent(jobs.Event{
		InvocationID: id,
		Type:         jobs.EventTypeStatus,
		Status:       status,
		Message:      message,
	})
}

func (b *Button) publishError(id, kind, message string) {
	b.publishEvent(jobs.Event{
		InvocationID: id,
		Type:         jobs.EventTypeError,
		Status:       domain.InvocationStatusFailed,
		Kind:         kind,
		Message:      message,
	})
}

// publishEvent stores event history and forwards it to the host.
func (b *Button) publishEvent(event jobs.Event) {
	published := b.events.Publish(event)
	if b.onEvent != nil {
		b.onEvent(published)
	}
}

// mapStageToStatus maps pipeline stage names to invocation statuses.
func mapStageToStatus(stage extract.Stage) (domain.InvocationStatus, bool) {
	switch stage {
	case extract.StageChecking:
		return domain.InvocationStatusChecking, true
	case extract.StageReading:
		return domain.InvocationStatusReading, true
	case extract.StageWriting:
		return domain.InvocationStatusWriting, true
	case extract.StageRecognizing:
		return domain.InvocationStatusRecognize, true
	case extract.StageCopying:
		return domain.InvocationStatusCopying, true
	default:
		return "", false
	}
}
