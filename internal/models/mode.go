package models

import (
	"fmt"
	"strings"
)

// Mode selects the optimisation policy for a run.
type Mode string

const (
	ModeRegular Mode = "regular"
	ModeEvening Mode = "evening"
)

// Modes is the closed set of accepted modes.
var Modes = []Mode{ModeRegular, ModeEvening}

// ParseMode accepts "regular" or "evening", case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRegular, ModeEvening:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be regular or evening", s)
	}
}

func (m Mode) String() string { return string(m) }
