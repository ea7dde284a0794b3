package rules

import "time"

// SpeedPreset fixes the day/night phase durations for a game.
type SpeedPreset struct {
	ID            string        `json:"id"`
	DayDuration   time.Duration `json:"day_duration"`
	NightDuration time.Duration `json:"night_duration"`
}

// Named presets. "standard" is the default when the client sends an
// unknown preset id.
var (
	PresetShort    = SpeedPreset{ID: "short", DayDuration: 3 * time.Minute, NightDuration: 1 * time.Minute}
	PresetStandard = SpeedPreset{ID: "standard", DayDuration: 5 * time.Minute, NightDuration: 2 * time.Minute}
)

// PresetByID resolves a preset id, defaulting to standard.
func PresetByID(id string) SpeedPreset {
	switch id {
	case PresetShort.ID:
		return PresetShort
	default:
		return PresetStandard
	}
}
