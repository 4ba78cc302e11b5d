package data

// ChapterRegex is a named chapter heading pattern in the pattern library.
type ChapterRegex struct {
	ID      int64
	Name    string
	Example string // sample heading shown next to the name
	Pattern string
	Enabled bool
}

// Label is the text shown when picking a pattern: "name (example)", or just
// the name when there is no example.
func (r ChapterRegex) Label() string {
	if r.Example == "" {
		return r.Name
	}
	return r.Name + " (" + r.Example + ")"
}

// SlotSetting is the stored state of one of the nine pattern slots.
type SlotSetting struct {
	Slot    int // 1-based
	Enabled bool
	Pattern string
}
