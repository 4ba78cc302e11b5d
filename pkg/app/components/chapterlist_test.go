package components

import (
	"strings"
	"testing"

	"github.com/kerbaras/txt2epub/pkg/chapters"
)

func testRecords(n int) []chapters.ChapterRecord {
	records := make([]chapters.ChapterRecord, n)
	for i := range records {
		records[i] = chapters.ChapterRecord{Selected: true, Text: "Chapter", LineNo: i*5 + 1}
	}
	return records
}

func TestNewChapterList(t *testing.T) {
	list := NewChapterList(nil)

	if list == nil {
		t.Fatal("Expected chapter list to be created")
	}

	if list.SelectedIndex != 0 {
		t.Errorf("Expected SelectedIndex 0, got %d", list.SelectedIndex)
	}

	if list.Model.Len() != 0 {
		t.Errorf("Expected 0 rows, got %d", list.Model.Len())
	}
}

func TestSetRecordsClampsCursor(t *testing.T) {
	list := NewChapterList(nil)
	list.SetRecords(testRecords(3))
	list.SelectedIndex = 2

	list.SetRecords(testRecords(1))

	if list.SelectedIndex != 0 {
		t.Errorf("Expected SelectedIndex 0, got %d", list.SelectedIndex)
	}
}

func TestNextPrevWrap(t *testing.T) {
	list := NewChapterList(chapters.NewSelectionModel(testRecords(3)))

	list.Prev()
	if list.SelectedIndex != 2 {
		t.Errorf("Expected wrap to 2, got %d", list.SelectedIndex)
	}

	list.Next()
	if list.SelectedIndex != 0 {
		t.Errorf("Expected wrap to 0, got %d", list.SelectedIndex)
	}

	empty := NewChapterList(nil)
	empty.Next()
	empty.Prev()
	if empty.SelectedIndex != 0 {
		t.Errorf("Expected empty list cursor to stay at 0, got %d", empty.SelectedIndex)
	}
}

func TestToggleUnderCursor(t *testing.T) {
	list := NewChapterList(chapters.NewSelectionModel(testRecords(3)))
	list.Next()

	if err := list.Toggle(); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	if _, ok := list.Model.SequenceNumber(1); ok {
		t.Error("Expected row 1 to be unnumbered")
	}
	if n, _ := list.Model.SequenceNumber(2); n != 2 {
		t.Errorf("Expected row 2 to be number 2, got %d", n)
	}
}

func TestViewShowsSequenceAndIllustration(t *testing.T) {
	list := NewChapterList(chapters.NewSelectionModel(testRecords(2)))
	if err := list.SetIllustration("/tmp/a.png"); err != nil {
		t.Fatalf("SetIllustration failed: %v", err)
	}
	list.Next()
	if err := list.Toggle(); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	view := list.View()

	if !strings.Contains(view, "[x]") || !strings.Contains(view, "[ ]") {
		t.Error("Expected both a selected and an unselected row")
	}
	if !strings.Contains(view, "[img]") {
		t.Error("Expected an illustration marker")
	}
	if !strings.Contains(view, "(line 6)") {
		t.Error("Expected the line number of the second row")
	}
}

func TestViewEmpty(t *testing.T) {
	list := NewChapterList(nil)

	if !strings.Contains(list.View(), "No chapters found") {
		t.Error("Expected empty message")
	}
}

func TestVisibleRangeFollowsCursor(t *testing.T) {
	list := NewChapterList(chapters.NewSelectionModel(testRecords(50)))
	list.Height = 10
	list.SelectedIndex = 45

	start, end := list.visibleRange()

	if end != 50 || start != 40 {
		t.Errorf("Expected range [40,50), got [%d,%d)", start, end)
	}
	if list.SelectedIndex < start || list.SelectedIndex >= end {
		t.Error("Cursor outside visible range")
	}
}
