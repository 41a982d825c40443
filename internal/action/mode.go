package action

import (
	"fmt"
	"strings"

	"github.com/noah-isme/gema-grader/internal/models"
)

// Mode is the grading interaction an action is bound to.
type Mode string

const (
	ModeRun   Mode = models.ModeRun
	ModeDemo  Mode = models.ModeDemo
	ModeTest  Mode = models.ModeTest
	ModeOpen  Mode = models.ModeOpen
	ModePrint Mode = models.ModePrint
)

// AllModes lists every mode in display order.
func AllModes() []Mode {
	return []Mode{ModeRun, ModeDemo, ModeTest, ModeOpen, ModePrint}
}

// ParseMode accepts a mode name case-insensitively.
func ParseMode(raw string) (Mode, error) {
	candidate := Mode(strings.ToUpper(strings.TrimSpace(raw)))
	for _, mode := range AllModes() {
		if mode == candidate {
			return mode, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
}

// Batches reports whether the mode naturally acts on many groups at once.
func (m Mode) Batches() bool {
	return m == ModePrint
}
