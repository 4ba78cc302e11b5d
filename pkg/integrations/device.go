package integrations

import (
	"fmt"
	"sort"
)

// ReaderDevice is an e-reader screen that illustrations can be sized for.
type ReaderDevice struct {
	Name      string
	Width     int // screen width in pixels
	Height    int // screen height in pixels
	DPI       int
	Grayscale bool // e-ink panel
}

// ReaderDevices are the built-in presets, keyed by device ID.
var ReaderDevices = map[string]ReaderDevice{
	"kindle-basic": {
		Name:      "Kindle Basic (10th gen)",
		Width:     758,
		Height:    1024,
		DPI:       167,
		Grayscale: true,
	},
	"kindle-paperwhite": {
		Name:      "Kindle Paperwhite 1/2",
		Width:     758,
		Height:    1024,
		DPI:       212,
		Grayscale: true,
	},
	"kindle-paperwhite3": {
		Name:      "Kindle Paperwhite 3/4",
		Width:     1072,
		Height:    1448,
		DPI:       300,
		Grayscale: true,
	},
	"kindle-oasis3": {
		Name:      "Kindle Oasis 3",
		Width:     1264,
		Height:    1680,
		DPI:       300,
		Grayscale: true,
	},
	"kindle-scribe": {
		Name:      "Kindle Scribe",
		Width:     1860,
		Height:    2480,
		DPI:       300,
		Grayscale: true,
	},
	"kobo-clara": {
		Name:      "Kobo Clara HD/2E",
		Width:     1072,
		Height:    1448,
		DPI:       300,
		Grayscale: true,
	},
	"kobo-libra": {
		Name:      "Kobo Libra 2",
		Width:     1264,
		Height:    1680,
		DPI:       300,
		Grayscale: true,
	},
	"tablet": {
		Name:   "Color tablet",
		Width:  1200,
		Height: 1920,
		DPI:    323,
	},
}

// DeviceProfile returns the preset for id.
func DeviceProfile(id string) (ReaderDevice, bool) {
	device, ok := ReaderDevices[id]
	return device, ok
}

// DeviceList returns "id: name" for every preset, sorted by id.
func DeviceList() []string {
	ids := make([]string, 0, len(ReaderDevices))
	for id := range ReaderDevices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, fmt.Sprintf("%s: %s", id, ReaderDevices[id].Name))
	}
	return out
}

// IllustrationSettings sizes illustrations to fill the screen.
func (d ReaderDevice) IllustrationSettings() IllustrationSettings {
	settings := IllustrationSettings{
		MaxWidth:  d.Width,
		MaxHeight: d.Height,
		Quality:   85,
		Grayscale: d.Grayscale,
	}

	// High DPI screens show compression artifacts
	if d.DPI >= 300 {
		settings.Quality = 90
	}

	return settings
}
