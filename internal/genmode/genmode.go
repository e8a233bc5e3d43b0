// Package genmode loads the generation mode switch: the operator-edited file
// that forces regeneration or pins replay audio for specific stops.
package genmode

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// Mode selects the reuse policy for a job run.
type Mode string

const (
	ReuseExisting         Mode = "reuse_existing"
	ForceRegenerateAll    Mode = "force_regenerate_all"
	ForceRegenerateScript Mode = "force_regenerate_script"
	ForceRegenerateAudio  Mode = "force_regenerate_audio"
)

// ParseMode maps s to a known mode, falling back to ReuseExisting.
func ParseMode(s string) Mode {
	switch m := Mode(strings.TrimSpace(strings.ToLower(s))); m {
	case ReuseExisting, ForceRegenerateAll, ForceRegenerateScript, ForceRegenerateAudio:
		return m
	}
	return ReuseExisting
}

// Switch is an immutable snapshot of the mode switch for one job run.
type Switch struct {
	Mode Mode
	// replay maps stopID -> persona -> pinned audio URL.
	replay map[string]map[string]string
}

// Default returns the switch used when no file is configured or readable.
func Default() Switch {
	return Switch{Mode: ReuseExisting}
}

// New builds a switch from a mode and a replay map. Blank URLs are dropped
// and the map is copied.
func New(mode Mode, replay map[string]map[string]string) Switch {
	s := Switch{Mode: ParseMode(string(mode))}
	for stopID, personas := range replay {
		stopID = strings.TrimSpace(stopID)
		if stopID == "" {
			continue
		}
		for persona, url := range personas {
			url = strings.TrimSpace(url)
			persona = strings.TrimSpace(persona)
			if url == "" || persona == "" {
				continue
			}
			if s.replay == nil {
				s.replay = make(map[string]map[string]string)
			}
			if s.replay[stopID] == nil {
				s.replay[stopID] = make(map[string]string)
			}
			s.replay[stopID][persona] = url
		}
	}
	return s
}

// ForcesScript reports whether existing scripts must be regenerated.
func (s Switch) ForcesScript() bool {
	return s.Mode == ForceRegenerateAll || s.Mode == ForceRegenerateScript
}

// ForcesAudio reports whether existing audio must be resynthesized.
func (s Switch) ForcesAudio() bool {
	return s.Mode == ForceRegenerateAll || s.Mode == ForceRegenerateAudio
}

// ReplayURL returns the pinned audio URL for a stop and persona, if any.
func (s Switch) ReplayURL(stopID, persona string) (string, bool) {
	url, ok := s.replay[stopID][persona]
	return url, ok
}

// ReplayCount returns the number of pinned stop/persona pairs.
func (s Switch) ReplayCount() int {
	n := 0
	for _, personas := range s.replay {
		n += len(personas)
	}
	return n
}

type fileFormat struct {
	Mode        string                       `json:"mode"`
	ReplayAudio map[string]map[string]string `json:"replay_audio"`
}

// Load reads the switch file at path. A blank path, a missing file or a
// malformed document yields Default; the latter two are logged at warn.
func Load(path string, logger *slog.Logger) Switch {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("generation mode file not found, using defaults", "path", path)
		} else {
			logger.Warn("generation mode file unreadable, using defaults", "path", path, "error", err)
		}
		return Default()
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warn("generation mode file malformed, using defaults", "path", path, "error", err)
		return Default()
	}
	if f.Mode != "" && ParseMode(f.Mode) != Mode(strings.ToLower(strings.TrimSpace(f.Mode))) {
		logger.Warn("unknown generation mode, using reuse_existing", "path", path, "mode", f.Mode)
	}
	return New(Mode(f.Mode), f.ReplayAudio)
}
