package charset

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"go.uber.org/zap"

	"github.com/kerbaras/txt2epub/pkg/logger"
)

const (
	DefaultSampleSize          = 100 * 1024
	DefaultResampleFactor      = 3
	DefaultConfidenceThreshold = 0.7
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Guess is the outcome of encoding inference. Confidence is in [0, 1].
type Guess struct {
	Name       string
	Confidence float64
}

// Inferrer runs statistical charset inference over a byte sample.
type Inferrer interface {
	Infer(sample []byte) (Guess, error)
}

// ChardetInferrer is the default Inferrer backed by chardet.
type ChardetInferrer struct {
	detector *chardet.Detector
}

func NewChardetInferrer() *ChardetInferrer {
	return &ChardetInferrer{detector: chardet.NewTextDetector()}
}

// Infer reports a BOM-prefixed sample as utf-8-sig and a pure 7-bit sample as
// ascii, both with full confidence, before falling back to chardet.
func (c *ChardetInferrer) Infer(sample []byte) (Guess, error) {
	if bytes.HasPrefix(sample, utf8BOM) {
		return Guess{Name: UTF8Sig, Confidence: 1.0}, nil
	}
	if isASCII(sample) {
		return Guess{Name: ASCII, Confidence: 1.0}, nil
	}

	result, err := c.detector.DetectBest(trimPartialRune(sample))
	if err != nil {
		return Guess{}, err
	}

	return Guess{
		Name:       strings.ToLower(result.Charset),
		Confidence: float64(result.Confidence) / 100,
	}, nil
}

// trimPartialRune drops a multi-byte sequence cut off by the sample boundary
// so it is not counted against UTF-8.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if !utf8.RuneStart(b[len(b)-i]) {
			continue
		}
		if !utf8.FullRune(b[len(b)-i:]) {
			return b[:len(b)-i]
		}
		return b
	}
	return b
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// Detector infers the encoding of a file from a bounded prefix sample.
type Detector struct {
	inferrer       Inferrer
	sampleSize     int
	resampleFactor int
	threshold      float64
	logger         *zap.Logger
}

type DetectorOption func(*Detector)

func WithInferrer(i Inferrer) DetectorOption {
	return func(d *Detector) { d.inferrer = i }
}

func WithSampleSize(n int) DetectorOption {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

func WithResampleFactor(f int) DetectorOption {
	return func(d *Detector) {
		if f > 1 {
			d.resampleFactor = f
		}
	}
}

func WithConfidenceThreshold(t float64) DetectorOption {
	return func(d *Detector) { d.threshold = t }
}

func WithDetectorLogger(l *zap.Logger) DetectorOption {
	return func(d *Detector) { d.logger = logger.OrNop(l) }
}

// NewDetector creates a Detector with the default chardet inferrer and a
// 100 KiB sample resampled at 3x below 0.7 confidence.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		inferrer:       NewChardetInferrer(),
		sampleSize:     DefaultSampleSize,
		resampleFactor: DefaultResampleFactor,
		threshold:      DefaultConfidenceThreshold,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect never fails: I/O errors are logged and reported as utf-8 with zero
// confidence.
func (d *Detector) Detect(path string) Guess {
	f, err := os.Open(path)
	if err != nil {
		d.logger.Warn("encoding detection failed", zap.String("path", path), zap.Error(err))
		return Guess{Name: UTF8, Confidence: 0}
	}
	defer f.Close()

	sample, err := readSample(f, d.sampleSize)
	if err != nil {
		d.logger.Warn("encoding detection failed", zap.String("path", path), zap.Error(err))
		return Guess{Name: UTF8, Confidence: 0}
	}
	if len(sample) == 0 {
		return Guess{Name: UTF8, Confidence: 1.0}
	}

	guess := d.infer(sample)
	d.logger.Debug("encoding sampled",
		zap.String("path", path),
		zap.String("encoding", guess.Name),
		zap.Float64("confidence", guess.Confidence),
		zap.Int("sample_bytes", len(sample)),
	)

	// A short sample already covers the whole file; only a full one can grow.
	if guess.Confidence < d.threshold && len(sample) == d.sampleSize {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			d.logger.Warn("encoding resample failed", zap.String("path", path), zap.Error(err))
			return Guess{Name: UTF8, Confidence: 0}
		}
		larger, err := readSample(f, d.sampleSize*d.resampleFactor)
		if err != nil {
			d.logger.Warn("encoding resample failed", zap.String("path", path), zap.Error(err))
			return Guess{Name: UTF8, Confidence: 0}
		}

		guess = d.infer(larger)
		d.logger.Debug("encoding resampled",
			zap.String("path", path),
			zap.String("encoding", guess.Name),
			zap.Float64("confidence", guess.Confidence),
			zap.Int("sample_bytes", len(larger)),
		)
	}

	return guess
}

func (d *Detector) infer(sample []byte) Guess {
	guess, err := d.inferrer.Infer(sample)
	if err != nil {
		d.logger.Debug("charset inference returned no result", zap.Error(err))
		guess = Guess{}
	}
	if strings.TrimSpace(guess.Name) == "" {
		guess.Name = UTF8
	} else {
		guess.Name = Normalize(guess.Name)
	}
	return guess
}

func readSample(r io.Reader, size int) ([]byte, error) {
	buf := make([]byte, size)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:n], nil
}
