package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kerbaras/txt2epub/pkg/chapters"
	"github.com/kerbaras/txt2epub/pkg/charset"
	"github.com/kerbaras/txt2epub/pkg/config"
	"github.com/kerbaras/txt2epub/pkg/data"
	"github.com/kerbaras/txt2epub/pkg/integrations"
	"github.com/kerbaras/txt2epub/pkg/logger"
)

// SlotStore is the part of the settings repository the controller needs.
type SlotStore interface {
	LoadSlots() ([]data.SlotSetting, error)
}

// Controller wires the pipeline from configuration and owns the current
// conversion run.
type Controller struct {
	cfg       *config.Config
	logger    *zap.Logger
	detector  *charset.Detector
	converter *charset.Converter
	scanner   *chapters.Scanner
	builder   *integrations.EPubBuilder

	mu      sync.Mutex
	current *ConversionWorker
}

func NewController(cfg *config.Config, l *zap.Logger) *Controller {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	l = logger.OrNop(l)

	images := integrations.NewIllustrationProcessor(illustrationSettings(cfg, l))

	return &Controller{
		cfg:    cfg,
		logger: l,
		detector: charset.NewDetector(
			charset.WithSampleSize(cfg.Detect.SampleSize),
			charset.WithResampleFactor(cfg.Detect.ResampleFactor),
			charset.WithConfidenceThreshold(cfg.Detect.ConfidenceThreshold),
			charset.WithDetectorLogger(l),
		),
		converter: charset.NewConverter(
			charset.WithChunkSize(cfg.Convert.ChunkSize),
			charset.WithProgressInterval(cfg.Convert.ProgressInterval),
			charset.WithConverterLogger(l),
		),
		scanner: chapters.NewScanner(cfg.Scan.Encodings, l),
		builder: integrations.NewEPubBuilder(cfg.EPub.OutputDir, cfg.EPub.Author, cfg.EPub.Language, images, l),
	}
}

func (c *Controller) Config() *config.Config {
	return c.cfg
}

func (c *Controller) Detect(path string) charset.Guess {
	return c.detector.Detect(path)
}

// StartConversion cancels and waits for any run in progress, then starts a
// new one for path.
func (c *Controller) StartConversion(path string) (*ConversionWorker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.Cancel()
		prev := c.current.Wait()
		c.logger.Debug("previous run finished",
			zap.String("run_id", c.current.RunID()),
			zap.Stringer("state", prev.State),
		)
		c.current = nil
	}

	w := NewConversionWorker(path, c.detector, c.converter, WorkerOptions{
		OutputSuffix: c.cfg.Convert.OutputSuffix,
		LockDir:      c.cfg.Convert.LockDir,
		Logger:       c.logger,
	})
	if err := w.Start(); err != nil {
		return nil, err
	}

	c.current = w
	return w, nil
}

// CancelConversion asks the current run, if any, to stop.
func (c *Controller) CancelConversion() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.Cancel()
	}
}

// PatternSet builds a pattern set from explicit patterns, or from the stored
// slots when patterns is empty.
func (c *Controller) PatternSet(store SlotStore, patterns []string) (*chapters.PatternSet, error) {
	var slots []chapters.PatternSlot

	if len(patterns) > 0 {
		for _, p := range patterns {
			slots = append(slots, chapters.PatternSlot{Enabled: true, Pattern: p})
		}
	} else if store != nil {
		stored, err := store.LoadSlots()
		if err != nil {
			return nil, fmt.Errorf("failed to load pattern slots: %w", err)
		}
		for _, s := range stored {
			slots = append(slots, chapters.PatternSlot{Enabled: s.Enabled, Pattern: s.Pattern})
		}
	}

	return chapters.NewPatternSet(slots,
		chapters.WithMatchTimeout(c.cfg.Scan.RegexTimeout),
		chapters.WithPatternLogger(c.logger),
	)
}

func (c *Controller) Scan(ctx context.Context, path string, set *chapters.PatternSet) ([]chapters.ChapterRecord, error) {
	return c.scanner.Scan(ctx, path, set.Active())
}

func (c *Controller) BuildEPub(textPath string, selected []chapters.ChapterRecord, opts integrations.BookOptions) (string, error) {
	return c.builder.Build(textPath, selected, opts)
}

// illustrationSettings prefers the configured reader device over the plain
// size limits.
func illustrationSettings(cfg *config.Config, l *zap.Logger) integrations.IllustrationSettings {
	if cfg.EPub.Device != "" {
		if device, ok := integrations.DeviceProfile(cfg.EPub.Device); ok {
			return device.IllustrationSettings()
		}
		l.Warn("unknown reader device, using configured illustration size",
			zap.String("device", cfg.EPub.Device),
		)
	}

	return integrations.IllustrationSettings{
		MaxWidth:  cfg.EPub.IllustrationWidth,
		MaxHeight: cfg.EPub.IllustrationHeight,
	}
}
