package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/kerbaras/txt2epub/pkg/charset"
)

// Mock implementations for testing

type mockDetector struct {
	detectFunc func(path string) charset.Guess
	calls      int
}

func (m *mockDetector) Detect(path string) charset.Guess {
	m.calls++
	if m.detectFunc != nil {
		return m.detectFunc(path)
	}
	return charset.Guess{Name: charset.UTF8, Confidence: 1}
}

type mockConverter struct {
	convertFunc func(ctx context.Context, src, dst, enc string, cb charset.Callbacks) error
	calls       int
}

func (m *mockConverter) Convert(ctx context.Context, src, dst, enc string, cb charset.Callbacks) error {
	m.calls++
	if m.convertFunc != nil {
		return m.convertFunc(ctx, src, dst, enc, cb)
	}
	return nil
}

func guessOf(name string) *mockDetector {
	return &mockDetector{detectFunc: func(string) charset.Guess {
		return charset.Guess{Name: name, Confidence: 0.99}
	}}
}

func writeSource(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "novel.txt")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func testOptions(t *testing.T) WorkerOptions {
	return WorkerOptions{LockDir: t.TempDir()}
}

// drain collects every event until the channel closes.
func drain(t *testing.T, w *ConversionWorker) []ConversionEvent {
	t.Helper()

	var events []ConversionEvent
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func progressValues(events []ConversionEvent) []int {
	var out []int
	for _, ev := range events {
		if ev.Kind == EventProgress {
			out = append(out, ev.Progress)
		}
	}
	return out
}

func statusValues(events []ConversionEvent) []string {
	var out []string
	for _, ev := range events {
		if ev.Kind == EventStatus {
			out = append(out, ev.Status)
		}
	}
	return out
}

func assertSingleCompletionLast(t *testing.T, events []ConversionEvent) ConversionEvent {
	t.Helper()
	require.NotEmpty(t, events)

	completions := 0
	for _, ev := range events {
		if ev.Kind == EventComplete {
			completions++
		}
	}
	assert.Equal(t, 1, completions)

	last := events[len(events)-1]
	assert.Equal(t, EventComplete, last.Kind)
	return last
}

func TestWorkerAlreadyNormalized(t *testing.T) {
	for _, name := range []string{"utf-8", "UTF-8-SIG", "ascii"} {
		t.Run(name, func(t *testing.T) {
			src := writeSource(t, []byte("Chapter 1\n"))
			conv := &mockConverter{}

			w := NewConversionWorker(src, guessOf(name), conv, testOptions(t))
			require.NoError(t, w.Start())

			events := drain(t, w)
			done := w.Wait()

			assert.Equal(t, Completion{ResultPath: src, State: StateDone}, done)
			assert.Equal(t, StateDone, w.State())
			assert.Equal(t, 0, conv.calls)
			assert.Equal(t, []int{0, 100}, progressValues(events))

			last := assertSingleCompletionLast(t, events)
			assert.Equal(t, src, last.ResultPath)
			assert.NoError(t, last.Err)
			assert.Equal(t, w.RunID(), last.RunID)
		})
	}
}

func TestWorkerConvertsLegacyEncoding(t *testing.T) {
	text := strings.Repeat("제1장 시작\n한글 본문입니다.\n", 100)
	encoded, err := korean.EUCKR.NewEncoder().String(text)
	require.NoError(t, err)
	src := writeSource(t, []byte(encoded))

	w := NewConversionWorker(src, guessOf("EUC-KR"), charset.NewConverter(), testOptions(t))
	require.NoError(t, w.Start())

	events := drain(t, w)
	done := w.Wait()

	require.NoError(t, done.Err)
	assert.Equal(t, StateDone, done.State)
	assert.Equal(t, filepath.Join(filepath.Dir(src), "novel_utf8.txt"), done.ResultPath)

	out, err := os.ReadFile(done.ResultPath)
	require.NoError(t, err)
	assert.Equal(t, text, string(out))

	assert.Contains(t, progressValues(events), 100)
	assert.Contains(t, statusValues(events), charset.StatusComplete)
	assertSingleCompletionLast(t, events)
}

func TestWorkerCancelDuringConversion(t *testing.T) {
	src := writeSource(t, []byte("data"))
	dest := DestinationPath(src, DefaultOutputSuffix)
	started := make(chan struct{})

	conv := &mockConverter{convertFunc: func(ctx context.Context, _, dst, _ string, cb charset.Callbacks) error {
		if err := os.WriteFile(dst, []byte("partial"), 0644); err != nil {
			return err
		}
		cb.OnProgress(10)
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}

	w := NewConversionWorker(src, guessOf("euc-kr"), conv, testOptions(t))
	require.NoError(t, w.Start())

	<-started
	w.Cancel()
	events := drain(t, w)
	done := w.Wait()

	assert.Equal(t, Completion{State: StateCancelled}, done)
	assert.NotContains(t, progressValues(events), 100)
	assert.NotContains(t, statusValues(events), charset.StatusComplete)

	last := assertSingleCompletionLast(t, events)
	assert.Empty(t, last.ResultPath)
	assert.NoError(t, last.Err)

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "partial output should be removed")
}

func TestWorkerCancelBeforeStart(t *testing.T) {
	src := writeSource(t, []byte("data"))
	det := guessOf("euc-kr")

	w := NewConversionWorker(src, det, &mockConverter{}, testOptions(t))
	w.Cancel()
	require.NoError(t, w.Start())

	done := w.Wait()

	assert.Equal(t, StateCancelled, done.State)
	assert.Empty(t, done.ResultPath)
	assert.NoError(t, done.Err)
	assert.Equal(t, 0, det.calls)
}

func TestWorkerConversionFailure(t *testing.T) {
	src := writeSource(t, []byte("data"))
	dest := DestinationPath(src, DefaultOutputSuffix)
	diskFull := errors.New("no space left on device")

	conv := &mockConverter{convertFunc: func(_ context.Context, _, dst, _ string, _ charset.Callbacks) error {
		if err := os.WriteFile(dst, []byte("half"), 0644); err != nil {
			return err
		}
		return diskFull
	}}

	w := NewConversionWorker(src, guessOf("shift_jis"), conv, testOptions(t))
	require.NoError(t, w.Start())

	events := drain(t, w)
	done := w.Wait()

	assert.Equal(t, StateFailed, done.State)
	assert.Empty(t, done.ResultPath)
	assert.ErrorIs(t, done.Err, diskFull)
	assert.Contains(t, done.Err.Error(), "shift_jis")

	statuses := statusValues(events)
	require.NotEmpty(t, statuses)
	assert.True(t, strings.HasPrefix(statuses[len(statuses)-1], "Error: "))

	// failed output is left as-is
	out, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "half", string(out))
}

func TestWorkerUnknownEncodingFails(t *testing.T) {
	src := writeSource(t, []byte("data"))

	w := NewConversionWorker(src, guessOf("klingon-8"), charset.NewConverter(), testOptions(t))
	require.NoError(t, w.Start())
	done := w.Wait()

	assert.Equal(t, StateFailed, done.State)
	assert.ErrorIs(t, done.Err, charset.ErrUnknownEncoding)
}

func TestWorkerISO2022Guesses(t *testing.T) {
	t.Run("korean mail text converts", func(t *testing.T) {
		src := writeSource(t, []byte("\x1b$)C\x0e\x3e\x48\x33\x67\x0f hello\n"))

		w := NewConversionWorker(src, guessOf("ISO-2022-KR"), charset.NewConverter(), testOptions(t))
		require.NoError(t, w.Start())
		drain(t, w)
		done := w.Wait()

		require.Equal(t, StateDone, done.State)
		out, err := os.ReadFile(done.ResultPath)
		require.NoError(t, err)
		assert.Equal(t, "안녕 hello\n", string(out))
	})

	t.Run("chinese variant without a decoder fails", func(t *testing.T) {
		src := writeSource(t, []byte("\x1b$)A\x0e\x3b\x3a\x0f"))

		w := NewConversionWorker(src, guessOf("ISO-2022-CN"), charset.NewConverter(), testOptions(t))
		require.NoError(t, w.Start())
		events := drain(t, w)
		done := w.Wait()

		assert.Equal(t, StateFailed, done.State)
		assert.ErrorIs(t, done.Err, charset.ErrUnknownEncoding)
		assert.Empty(t, done.ResultPath)

		statuses := statusValues(events)
		require.NotEmpty(t, statuses)
		assert.True(t, strings.HasPrefix(statuses[len(statuses)-1], "Error: "))
	})
}

func TestWorkerDetectorPanic(t *testing.T) {
	src := writeSource(t, []byte("data"))
	det := &mockDetector{detectFunc: func(string) charset.Guess { panic("boom") }}

	w := NewConversionWorker(src, det, &mockConverter{}, testOptions(t))
	require.NoError(t, w.Start())
	events := drain(t, w)
	done := w.Wait()

	assert.Equal(t, StateFailed, done.State)
	require.Error(t, done.Err)
	assert.Contains(t, done.Err.Error(), "boom")
	assertSingleCompletionLast(t, events)
}

func TestWorkerStartTwice(t *testing.T) {
	src := writeSource(t, []byte("data"))

	w := NewConversionWorker(src, &mockDetector{}, &mockConverter{}, testOptions(t))
	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Start(), ErrAlreadyStarted)
	w.Wait()
}

func TestWorkerDestinationBusy(t *testing.T) {
	src := writeSource(t, []byte("data"))
	opts := testOptions(t)

	held := flock.New(lockPath(opts.LockDir, DestinationPath(src, DefaultOutputSuffix)))
	require.NoError(t, held.Lock())
	defer held.Unlock()

	conv := &mockConverter{}
	w := NewConversionWorker(src, guessOf("euc-kr"), conv, opts)
	require.NoError(t, w.Start())
	done := w.Wait()

	assert.Equal(t, StateFailed, done.State)
	assert.ErrorIs(t, done.Err, ErrDestinationBusy)
	assert.Equal(t, 0, conv.calls)
}

func TestWorkerSlowConsumerDoesNotBlock(t *testing.T) {
	src := writeSource(t, []byte("data"))
	conv := &mockConverter{convertFunc: func(_ context.Context, _, _, _ string, cb charset.Callbacks) error {
		for i := 0; i < 100; i++ {
			cb.OnProgress(i)
			cb.OnStatus("working")
		}
		return nil
	}}

	opts := testOptions(t)
	opts.EventBuffer = 4
	w := NewConversionWorker(src, guessOf("euc-kr"), conv, opts)
	require.NoError(t, w.Start())

	select {
	case <-w.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("worker blocked on a full event channel")
	}

	events := drain(t, w)
	assert.LessOrEqual(t, len(events), 4)
	assertSingleCompletionLast(t, events)
}

func TestDestinationPath(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"/books/novel.txt", "/books/novel_utf8.txt"},
		{"/books/my.novel.txt", "/books/my.novel_utf8.txt"},
		{"/books/novel", "/books/novel_utf8"},
		{"novel.txt", "novel_utf8.txt"},
		{"/books/.hidden", "/books/.hidden_utf8"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DestinationPath(tt.src, "_utf8"), tt.src)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "already-normalized", StateAlreadyNormalized.String())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateConverting.Terminal())
}
