package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kerbaras/txt2epub/pkg/charset"
	"github.com/kerbaras/txt2epub/pkg/logger"
)

var (
	ErrAlreadyStarted  = errors.New("conversion worker already started")
	ErrDestinationBusy = errors.New("destination is being written by another conversion")
)

const (
	DefaultOutputSuffix = "_utf8"
	defaultEventBuffer  = 64
)

// State of a ConversionWorker run.
type State int32

const (
	StateIdle State = iota
	StateDetecting
	StateAlreadyNormalized
	StateConverting
	StateDone
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDetecting:
		return "detecting"
	case StateAlreadyNormalized:
		return "already-normalized"
	case StateConverting:
		return "converting"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateCancelled || s == StateFailed
}

type EventKind int

const (
	EventProgress EventKind = iota
	EventStatus
	EventComplete
)

// ConversionEvent is delivered on the worker's event channel. A run emits zero
// or more progress and status events, then exactly one EventComplete, after
// which the channel is closed.
type ConversionEvent struct {
	RunID    string
	Kind     EventKind
	Progress int
	Status   string

	// Set on EventComplete only.
	ResultPath string
	Err        error
}

// Completion is the terminal result of a run. A cancelled run has an empty
// ResultPath and a nil Err.
type Completion struct {
	ResultPath string
	Err        error
	State      State
}

// Detector infers the encoding of a file.
type Detector interface {
	Detect(path string) charset.Guess
}

// Converter transcodes a file to UTF-8.
type Converter interface {
	Convert(ctx context.Context, sourcePath, destPath, sourceEncoding string, cb charset.Callbacks) error
}

type WorkerOptions struct {
	// OutputSuffix goes between the stem and extension of the output file.
	OutputSuffix string
	// LockDir holds the per-destination lock files.
	LockDir     string
	EventBuffer int
	Logger      *zap.Logger
}

// ConversionWorker runs detection and conversion of one file on its own
// goroutine. A worker runs once.
type ConversionWorker struct {
	runID     string
	source    string
	detector  Detector
	converter Converter
	suffix    string
	lockDir   string
	logger    *zap.Logger

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc

	events     chan ConversionEvent
	done       chan struct{}
	finishOnce sync.Once
	completion Completion
}

func NewConversionWorker(sourcePath string, detector Detector, converter Converter, opts WorkerOptions) *ConversionWorker {
	if opts.OutputSuffix == "" {
		opts.OutputSuffix = DefaultOutputSuffix
	}
	if opts.LockDir == "" {
		opts.LockDir = filepath.Join(os.TempDir(), "txt2epub-locks")
	}
	// One slot is always kept free for the completion event.
	if opts.EventBuffer < 2 {
		opts.EventBuffer = defaultEventBuffer
	}

	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	return &ConversionWorker{
		runID:     runID,
		source:    sourcePath,
		detector:  detector,
		converter: converter,
		suffix:    opts.OutputSuffix,
		lockDir:   opts.LockDir,
		logger: logger.OrNop(opts.Logger).With(
			zap.String("run_id", runID),
			zap.String("source", sourcePath),
		),
		ctx:    ctx,
		cancel: cancel,
		events: make(chan ConversionEvent, opts.EventBuffer),
		done:   make(chan struct{}),
	}
}

func (w *ConversionWorker) RunID() string {
	return w.runID
}

func (w *ConversionWorker) Source() string {
	return w.source
}

func (w *ConversionWorker) State() State {
	return State(w.state.Load())
}

// Events returns the ordered event channel. It is closed after the
// completion event.
func (w *ConversionWorker) Events() <-chan ConversionEvent {
	return w.events
}

// Start launches the run in the background.
func (w *ConversionWorker) Start() error {
	if !w.state.CompareAndSwap(int32(StateIdle), int32(StateDetecting)) {
		return ErrAlreadyStarted
	}
	go w.run()
	return nil
}

// Cancel asks the run to stop at its next checkpoint. It does not wait.
func (w *ConversionWorker) Cancel() {
	w.cancel()
}

// Wait blocks until the run has completed. It must not be called on a worker
// that was never started.
func (w *ConversionWorker) Wait() Completion {
	<-w.done
	return w.completion
}

// Done is closed once the completion is available.
func (w *ConversionWorker) Done() <-chan struct{} {
	return w.done
}

func (w *ConversionWorker) run() {
	defer func() {
		if r := recover(); r != nil {
			w.finish(StateFailed, "", fmt.Errorf("conversion of %s panicked: %v", w.source, r))
		}
	}()

	path, state, err := w.execute()
	w.finish(state, path, err)
}

func (w *ConversionWorker) execute() (string, State, error) {
	if w.ctx.Err() != nil {
		return "", StateCancelled, nil
	}

	w.sendStatus("Detecting encoding...")
	w.sendProgress(0)

	guess := w.detector.Detect(w.source)
	w.logger.Info("encoding detected",
		zap.String("encoding", guess.Name),
		zap.Float64("confidence", guess.Confidence),
	)

	if w.ctx.Err() != nil {
		return "", StateCancelled, nil
	}

	if charset.IsNormalized(guess.Name) {
		w.state.Store(int32(StateAlreadyNormalized))
		w.sendStatus(fmt.Sprintf("Already %s, no conversion needed", guess.Name))
		w.sendProgress(100)
		return w.source, StateDone, nil
	}

	w.state.Store(int32(StateConverting))
	dest := DestinationPath(w.source, w.suffix)

	lock, err := w.lockDestination(dest)
	if err != nil {
		return "", StateFailed, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			w.logger.Warn("failed to release destination lock", zap.Error(err))
		}
	}()

	w.sendStatus(fmt.Sprintf("%s → UTF-8 conversion started", guess.Name))

	err = w.converter.Convert(w.ctx, w.source, dest, guess.Name, charset.Callbacks{
		OnProgress: w.sendProgress,
		OnStatus:   w.sendStatus,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			w.removePartial(dest)
			return "", StateCancelled, nil
		}
		return "", StateFailed, fmt.Errorf("failed to convert %s from %s: %w", w.source, guess.Name, err)
	}

	return dest, StateDone, nil
}

func (w *ConversionWorker) finish(state State, path string, err error) {
	w.finishOnce.Do(func() {
		w.state.Store(int32(state))

		switch state {
		case StateFailed:
			w.logger.Error("conversion failed", zap.Error(err))
			w.sendStatus("Error: " + err.Error())
		case StateCancelled:
			w.logger.Info("conversion cancelled")
		default:
			w.logger.Info("conversion finished", zap.String("result", path))
		}

		w.completion = Completion{ResultPath: path, Err: err, State: state}
		// sendEvent never fills the last slot, so this cannot block.
		w.events <- ConversionEvent{
			RunID:      w.runID,
			Kind:       EventComplete,
			ResultPath: path,
			Err:        err,
		}
		close(w.events)
		close(w.done)
		w.cancel()
	})
}

func (w *ConversionWorker) sendProgress(percent int) {
	w.sendEvent(ConversionEvent{RunID: w.runID, Kind: EventProgress, Progress: percent})
}

func (w *ConversionWorker) sendStatus(message string) {
	w.sendEvent(ConversionEvent{RunID: w.runID, Kind: EventStatus, Status: message})
}

// sendEvent is non-blocking; updates are dropped while the consumer lags.
func (w *ConversionWorker) sendEvent(ev ConversionEvent) {
	if len(w.events) >= cap(w.events)-1 {
		w.logger.Debug("event dropped", zap.Int("kind", int(ev.Kind)))
		return
	}
	select {
	case w.events <- ev:
	default:
	}
}

func (w *ConversionWorker) lockDestination(dest string) (*flock.Flock, error) {
	if err := os.MkdirAll(w.lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(lockPath(w.lockDir, dest))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", dest, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrDestinationBusy, dest)
	}
	return lock, nil
}

func (w *ConversionWorker) removePartial(dest string) {
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("failed to remove partial output", zap.String("path", dest), zap.Error(err))
	}
}

func lockPath(lockDir, dest string) string {
	abs, err := filepath.Abs(dest)
	if err != nil {
		abs = dest
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(lockDir, hex.EncodeToString(sum[:12])+".lock")
}

// DestinationPath inserts suffix before the extension: dir/name.txt becomes
// dir/name_utf8.txt.
func DestinationPath(sourcePath, suffix string) string {
	dir, base := filepath.Split(sourcePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}
	return filepath.Join(dir, stem+suffix+ext)
}
