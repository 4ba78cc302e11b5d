package charset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/text/transform"

	"github.com/kerbaras/txt2epub/pkg/logger"
)

const (
	DefaultChunkSize        = 1024 * 1024
	DefaultProgressInterval = 5 * 1024 * 1024

	StatusComplete = "Conversion complete"

	megabyte = 1024 * 1024
)

// Callbacks receive conversion events on the converting goroutine. Nil
// fields are skipped.
type Callbacks struct {
	OnProgress func(percent int)
	OnStatus   func(message string)
}

func (c Callbacks) progress(percent int) {
	if c.OnProgress != nil {
		c.OnProgress(percent)
	}
}

func (c Callbacks) status(message string) {
	if c.OnStatus != nil {
		c.OnStatus(message)
	}
}

// Converter re-encodes files to UTF-8 a chunk at a time.
type Converter struct {
	chunkSize        int
	progressInterval int64
	logger           *zap.Logger
}

type ConverterOption func(*Converter)

func WithChunkSize(n int) ConverterOption {
	return func(c *Converter) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

func WithProgressInterval(n int64) ConverterOption {
	return func(c *Converter) {
		if n > 0 {
			c.progressInterval = n
		}
	}
}

func WithConverterLogger(l *zap.Logger) ConverterOption {
	return func(c *Converter) { c.logger = logger.OrNop(l) }
}

func NewConverter(opts ...ConverterOption) *Converter {
	c := &Converter{
		chunkSize:        DefaultChunkSize,
		progressInterval: DefaultProgressInterval,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert decodes sourcePath as sourceEncoding and writes UTF-8 to destPath,
// creating or truncating it. Undecodable input becomes U+FFFD.
//
// Cancellation is checked before every chunk read. A cancelled conversion
// returns ctx.Err() and emits neither the final 100% progress nor the
// completion status.
func (c *Converter) Convert(ctx context.Context, sourcePath, destPath, sourceEncoding string, cb Callbacks) error {
	enc, err := Lookup(sourceEncoding)
	if err != nil {
		return fmt.Errorf("cannot convert %s: %w", sourcePath, err)
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	totalBytes := info.Size()

	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	reader := transform.NewReader(src, enc.NewDecoder())
	processed, err := c.copyChunks(ctx, dst, reader, totalBytes, cb)
	if closeErr := dst.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close destination: %w", closeErr)
	}
	if err != nil {
		return err
	}

	c.logger.Debug("conversion finished",
		zap.String("source", sourcePath),
		zap.String("destination", destPath),
		zap.String("encoding", sourceEncoding),
		zap.Int64("source_bytes", totalBytes),
		zap.Int64("utf8_bytes", processed),
	)

	cb.progress(100)
	cb.status(StatusComplete)
	return nil
}

func (c *Converter) copyChunks(ctx context.Context, dst io.Writer, src io.Reader, totalBytes int64, cb Callbacks) (int64, error) {
	buf := make([]byte, c.chunkSize)
	var processed, lastReported int64

	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return processed, fmt.Errorf("failed to write chunk: %w", err)
			}
			processed += int64(n)

			if processed-lastReported >= c.progressInterval {
				cb.progress(percent(processed, totalBytes))
				cb.status(fmt.Sprintf("Converting... %.1fMB / %.1fMB",
					float64(processed)/megabyte, float64(totalBytes)/megabyte))
				lastReported = processed
			}
		}

		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			return processed, nil
		}
		if readErr != nil {
			return processed, fmt.Errorf("failed to read chunk: %w", readErr)
		}
	}
}

// Convert runs a conversion with the default chunk size and progress interval.
func Convert(ctx context.Context, sourcePath, destPath, sourceEncoding string, cb Callbacks) error {
	return NewConverter().Convert(ctx, sourcePath, destPath, sourceEncoding, cb)
}

// percent is floor(processed/total*100) capped at 100. UTF-8 output may be
// larger than the source, hence the cap.
func percent(processed, total int64) int {
	if total <= 0 {
		return 100
	}
	p := processed * 100 / total
	if p > 100 {
		return 100
	}
	return int(p)
}
