package data

import (
	"path/filepath"
	"testing"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestNewRepositorySeedsDefaults(t *testing.T) {
	repo := setupTestRepo(t)

	regexes, err := repo.ListRegexes(false)
	if err != nil {
		t.Fatalf("Failed to list patterns: %v", err)
	}

	if len(regexes) != len(DefaultRegexes) {
		t.Fatalf("Expected %d seeded patterns, got %d", len(DefaultRegexes), len(regexes))
	}

	for i, r := range regexes {
		if r.Pattern != DefaultRegexes[i].Pattern {
			t.Errorf("Pattern %d: expected %q, got %q", i, DefaultRegexes[i].Pattern, r.Pattern)
		}
		if r.ID == 0 {
			t.Errorf("Pattern %d has no id", i)
		}
	}

	slots, err := repo.LoadSlots()
	if err != nil {
		t.Fatalf("Failed to load slots: %v", err)
	}
	if len(slots) != len(DefaultRegexes) {
		t.Fatalf("Expected %d seeded slots, got %d", len(DefaultRegexes), len(slots))
	}
	for i, s := range slots {
		if !s.Enabled || s.Pattern != DefaultRegexes[i].Pattern {
			t.Errorf("Slot %d: unexpected %+v", i+1, s)
		}
	}
}

func TestSeedRunsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	repo, err := NewRepository(path)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}
	repo.Close()

	repo, err = NewRepository(path)
	if err != nil {
		t.Fatalf("Failed to reopen repository: %v", err)
	}
	defer repo.Close()

	regexes, err := repo.ListRegexes(false)
	if err != nil {
		t.Fatalf("Failed to list patterns: %v", err)
	}
	if len(regexes) != len(DefaultRegexes) {
		t.Errorf("Expected %d patterns after reopening, got %d", len(DefaultRegexes), len(regexes))
	}
}

func TestReopenKeepsUserEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	repo, err := NewRepository(path)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}

	regexes, err := repo.ListRegexes(false)
	if err != nil {
		t.Fatalf("Failed to list patterns: %v", err)
	}
	for _, regex := range regexes {
		if err := repo.DeleteRegex(regex.ID); err != nil {
			t.Fatalf("Failed to delete pattern %d: %v", regex.ID, err)
		}
	}
	custom := []SlotSetting{{Enabled: true, Pattern: `Part \d+`}}
	if err := repo.SaveSlots(custom); err != nil {
		t.Fatalf("Failed to save slots: %v", err)
	}
	repo.Close()

	repo, err = NewRepository(path)
	if err != nil {
		t.Fatalf("Failed to reopen repository: %v", err)
	}
	defer repo.Close()

	regexes, err = repo.ListRegexes(false)
	if err != nil {
		t.Fatalf("Failed to list patterns: %v", err)
	}
	if len(regexes) != 0 {
		t.Errorf("Expected the emptied library to stay empty, got %d patterns", len(regexes))
	}

	slots, err := repo.LoadSlots()
	if err != nil {
		t.Fatalf("Failed to load slots: %v", err)
	}
	if len(slots) != 1 || slots[0].Pattern != custom[0].Pattern || !slots[0].Enabled {
		t.Errorf("Expected slots %+v after reopening, got %+v", custom, slots)
	}
}

func TestSeedKeepsExistingSlots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// a database written before the seed marker existed
	db, err := InitDuckDB(path)
	if err != nil {
		t.Fatalf("Failed to initialize DB: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO pattern_slots (slot, enabled, pattern) VALUES (1, FALSE, 'Book \d+')`); err != nil {
		t.Fatalf("Failed to insert slot: %v", err)
	}
	db.Close()

	repo, err := NewRepository(path)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}
	defer repo.Close()

	slots, err := repo.LoadSlots()
	if err != nil {
		t.Fatalf("Failed to load slots: %v", err)
	}
	if len(slots) != 1 || slots[0].Pattern != `Book \d+` || slots[0].Enabled {
		t.Errorf("Expected the stored slot to survive seeding, got %+v", slots)
	}

	regexes, err := repo.ListRegexes(false)
	if err != nil {
		t.Fatalf("Failed to list patterns: %v", err)
	}
	if len(regexes) != len(DefaultRegexes) {
		t.Errorf("Expected %d seeded patterns, got %d", len(DefaultRegexes), len(regexes))
	}
}

func TestSaveAndGetRegex(t *testing.T) {
	repo := setupTestRepo(t)

	regex := &ChapterRegex{
		Name:    "Part N",
		Example: "Part 2",
		Pattern: `Part \d+`,
		Enabled: true,
	}

	if err := repo.SaveRegex(regex); err != nil {
		t.Fatalf("Failed to save pattern: %v", err)
	}
	if regex.ID == 0 {
		t.Fatal("Expected an id to be assigned")
	}

	retrieved, err := repo.GetRegex(regex.ID)
	if err != nil {
		t.Fatalf("Failed to get pattern: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Expected pattern to exist")
	}
	if *retrieved != *regex {
		t.Errorf("Expected %+v, got %+v", *regex, *retrieved)
	}
}

func TestUpdateRegex(t *testing.T) {
	repo := setupTestRepo(t)

	regex := &ChapterRegex{Name: "Part N", Pattern: `Part \d+`, Enabled: true}
	if err := repo.SaveRegex(regex); err != nil {
		t.Fatalf("Failed to save pattern: %v", err)
	}

	regex.Enabled = false
	regex.Example = "Part 7"
	if err := repo.SaveRegex(regex); err != nil {
		t.Fatalf("Failed to update pattern: %v", err)
	}

	retrieved, _ := repo.GetRegex(regex.ID)
	if retrieved.Enabled {
		t.Error("Expected pattern to be disabled")
	}
	if retrieved.Example != "Part 7" {
		t.Errorf("Expected example 'Part 7', got %q", retrieved.Example)
	}

	enabled, err := repo.ListRegexes(true)
	if err != nil {
		t.Fatalf("Failed to list enabled patterns: %v", err)
	}
	for _, r := range enabled {
		if r.ID == regex.ID {
			t.Error("Disabled pattern listed as enabled")
		}
	}
}

func TestUpdateMissingRegex(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.SaveRegex(&ChapterRegex{ID: 9999, Name: "ghost", Pattern: "x"})
	if err == nil {
		t.Error("Expected an error updating a missing pattern")
	}
}

func TestGetRegexNotFound(t *testing.T) {
	repo := setupTestRepo(t)

	regex, err := repo.GetRegex(424242)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if regex != nil {
		t.Errorf("Expected nil, got %+v", regex)
	}
}

func TestDeleteRegex(t *testing.T) {
	repo := setupTestRepo(t)

	regexes, _ := repo.ListRegexes(false)
	target := regexes[0].ID

	if err := repo.DeleteRegex(target); err != nil {
		t.Fatalf("Failed to delete pattern: %v", err)
	}

	regex, _ := repo.GetRegex(target)
	if regex != nil {
		t.Error("Expected pattern to be deleted")
	}
}

func TestSaveAndLoadSlots(t *testing.T) {
	repo := setupTestRepo(t)

	slots := []SlotSetting{
		{Enabled: true, Pattern: `Chapter \d+.*`},
		{Enabled: false, Pattern: ""},
		{Enabled: true, Pattern: `제\s*\d+\s*장.*`},
	}
	if err := repo.SaveSlots(slots); err != nil {
		t.Fatalf("Failed to save slots: %v", err)
	}

	loaded, err := repo.LoadSlots()
	if err != nil {
		t.Fatalf("Failed to load slots: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("Expected 3 slots, got %d", len(loaded))
	}
	for i, s := range loaded {
		if s.Slot != i+1 {
			t.Errorf("Expected slot number %d, got %d", i+1, s.Slot)
		}
		if s.Enabled != slots[i].Enabled || s.Pattern != slots[i].Pattern {
			t.Errorf("Slot %d: expected %+v, got %+v", i+1, slots[i], s)
		}
	}

	// Saving again replaces the previous set
	if err := repo.SaveSlots(slots[:1]); err != nil {
		t.Fatalf("Failed to resave slots: %v", err)
	}
	loaded, _ = repo.LoadSlots()
	if len(loaded) != 1 {
		t.Errorf("Expected 1 slot after resave, got %d", len(loaded))
	}
}

func TestSaveSlotsRejectsTooMany(t *testing.T) {
	repo := setupTestRepo(t)

	if err := repo.SaveSlots(make([]SlotSetting, MaxSlots+1)); err == nil {
		t.Error("Expected an error for more than nine slots")
	}
}
