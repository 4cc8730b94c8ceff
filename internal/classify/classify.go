package classify

import "github.com/Zyldzkie/gas-guard/internal/model"

const (
	ColorWarning = "#FF8C00"
	ColorDanger  = "#FF0000"
)

// Level maps a ppm value against the thresholds in effect for the reading.
// value < warning is Safe, value >= danger is Danger, everything between
// is Warning. Boundaries are inclusive on the upper side.
func Level(value float64, thresholds model.ThresholdConfig) model.AlertLevel {
	if value >= thresholds.Danger {
		return model.LevelDanger
	}
	if value >= thresholds.Warning {
		return model.LevelWarning
	}
	return model.LevelSafe
}

// Color returns the presentation color tag for a persisted level. Safe has
// no color because Safe readings are never persisted.
func Color(level model.AlertLevel) string {
	switch level {
	case model.LevelWarning:
		return ColorWarning
	case model.LevelDanger:
		return ColorDanger
	default:
		return ""
	}
}
