package chapters

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func writeText(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.txt")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestScanFindsChapterLines(t *testing.T) {
	path := writeText(t, []byte("Chapter 1\nhello\nChapter 2\n"))

	records, err := NewScanner(nil, nil).Scan(context.Background(), path,
		[]*Pattern{MustCompilePattern(`^Chapter \d+$`)})

	require.NoError(t, err)
	assert.Equal(t, []ChapterRecord{
		{Selected: true, Text: "Chapter 1", LineNo: 1},
		{Selected: true, Text: "Chapter 2", LineNo: 3},
	}, records)
}

func TestScanPatternsAreOrCombined(t *testing.T) {
	path := writeText(t, []byte("프롤로그\r\n본문\r\n제 1 장 시작\r\nChapter 2\r\n에필로그"))

	records, err := Scan(context.Background(), path, []*Pattern{
		MustCompilePattern(`제\s*\d+\s*장.*`),
		MustCompilePattern(`(프롤로그|에필로그).*`),
	})

	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 1, records[0].LineNo)
	assert.Equal(t, "제 1 장 시작", records[1].Text)
	assert.Equal(t, 3, records[1].LineNo)
	assert.Equal(t, "에필로그", records[2].Text)
	assert.Equal(t, 5, records[2].LineNo)
}

func TestScanLoneCREndsLines(t *testing.T) {
	path := writeText(t, []byte("Chapter 1\rhello\r\rChapter 2\r\nworld\rChapter 3"))

	records, err := Scan(context.Background(), path, []*Pattern{MustCompilePattern(`^Chapter \d+$`)})

	require.NoError(t, err)
	assert.Equal(t, []ChapterRecord{
		{Selected: true, Text: "Chapter 1", LineNo: 1},
		{Selected: true, Text: "Chapter 2", LineNo: 4},
		{Selected: true, Text: "Chapter 3", LineNo: 6},
	}, records)
}

func TestScanNoPatternsDoesNotOpenFile(t *testing.T) {
	records, err := Scan(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), nil)

	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestScanStripsBOM(t *testing.T) {
	path := writeText(t, append([]byte{0xEF, 0xBB, 0xBF}, []byte("Chapter 1\ntext\n")...))

	records, err := Scan(context.Background(), path, []*Pattern{MustCompilePattern(`Chapter \d+`)})

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Chapter 1", records[0].Text)
}

func TestScanFallsBackToEUCKR(t *testing.T) {
	text := "서문\n제1장 봄\n내용입니다\n제2장 여름\n"
	encoded, err := korean.EUCKR.NewEncoder().String(text)
	require.NoError(t, err)
	path := writeText(t, []byte(encoded))

	records, err := Scan(context.Background(), path, []*Pattern{MustCompilePattern(`제\d+장.*`)})

	require.NoError(t, err)
	assert.Equal(t, []ChapterRecord{
		{Selected: true, Text: "제1장 봄", LineNo: 2},
		{Selected: true, Text: "제2장 여름", LineNo: 4},
	}, records)
}

func TestScanUndecodable(t *testing.T) {
	path := writeText(t, []byte{'C', 'h', 0xFF, 0xFE, '\n'})

	records, err := NewScanner([]string{"utf-8", "ascii"}, nil).Scan(context.Background(), path,
		[]*Pattern{MustCompilePattern(`.*`)})

	assert.ErrorIs(t, err, ErrUndecodable)
	assert.Nil(t, records)
}

func TestScanZeroMatchesIsNotAnError(t *testing.T) {
	path := writeText(t, []byte("nothing\nto see\n"))

	records, err := Scan(context.Background(), path, []*Pattern{MustCompilePattern(`Chapter \d+`)})

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestScanHonoursCancellation(t *testing.T) {
	path := writeText(t, []byte(strings.Repeat("line\n", cancelCheckLines*2)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, path, []*Pattern{MustCompilePattern(`line`)})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewScannerSkipsUnknownEncodings(t *testing.T) {
	s := NewScanner([]string{"UTF-8-SIG", "made-up", "EUC-KR"}, nil)

	assert.Equal(t, []string{"utf-8-sig", "euc-kr"}, s.Encodings())
	assert.Equal(t, DefaultEncodings, NewScanner(nil, nil).Encodings())
}
