// Package deadline resolves when a handin was received relative to a gradable
// event's deadline policy and what point adjustment that earns.
package deadline

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidConfiguration indicates a deadline was built with an illegal combination of fields.
var ErrInvalidConfiguration = errors.New("invalid deadline configuration")

// Kind enumerates the deadline policies.
type Kind string

const (
	KindNone     Kind = "none"
	KindFixed    Kind = "fixed"
	KindVariable Kind = "variable"
)

// ParseKind normalises a stored kind, treating blank as none.
func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case "", KindNone:
		return KindNone, nil
	case KindFixed, KindVariable:
		return Kind(value), nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidConfiguration, value)
	}
}

// Status classifies the timeliness of a handin.
type Status string

const (
	StatusEarly       Status = "EARLY"
	StatusOnTime      Status = "ON_TIME"
	StatusLate        Status = "LATE"
	StatusNCLate      Status = "NC_LATE"
	StatusNotReceived Status = "NOT_RECEIVED"
)

// Resolution is the outcome of resolving a handin time against a deadline.
// For StatusNCLate, Points is NaN because the zeroing penalty depends on the
// event total, which is only known to the caller; use Apply.
type Resolution struct {
	Status Status
	Points float64
}

// IsNoCredit reports whether the handin earns no credit at all.
func (r Resolution) IsNoCredit() bool {
	return r.Status == StatusNCLate
}

// Apply returns the point adjustment to add to an event whose unadjusted
// earned total is given.
func (r Resolution) Apply(unadjustedTotal float64) float64 {
	switch {
	case r.Status == StatusNCLate:
		return -unadjustedTotal
	case r.Status == StatusNotReceived, math.IsNaN(r.Points):
		return 0
	default:
		return r.Points
	}
}

// Extension is a grader-granted replacement on-time date for one group.
// With ShiftDates the other boundaries move by the same amount; otherwise they are dropped.
type Extension struct {
	OnTime     time.Time
	ShiftDates bool
}

// Info is an immutable, validated deadline policy.
type Info struct {
	kind Kind

	onTime time.Time

	early       *time.Time
	earlyPoints float64

	late       *time.Time
	latePoints float64

	// latePeriod is only used by variable deadlines; zero means no period configured.
	latePeriod time.Duration
}

// None returns a deadline with no timing effect.
func None() Info {
	return Info{kind: KindNone}
}

// Kind returns the policy kind.
func (i Info) Kind() Kind {
	if i.kind == "" {
		return KindNone
	}
	return i.kind
}

// OnTime returns the on-time date; zero for KindNone.
func (i Info) OnTime() time.Time { return i.onTime }

// Early returns the early date and bonus when configured.
func (i Info) Early() (time.Time, float64, bool) {
	if i.early == nil {
		return time.Time{}, 0, false
	}
	return *i.early, i.earlyPoints, true
}

// Late returns the late date when configured.
func (i Info) Late() (time.Time, bool) {
	if i.late == nil {
		return time.Time{}, false
	}
	return *i.late, true
}

// LatePoints returns the late points and whether they are configured.
func (i Info) LatePoints() (float64, bool) {
	switch i.kind {
	case KindFixed:
		return i.latePoints, i.late != nil
	case KindVariable:
		return i.latePoints, i.latePeriod > 0
	default:
		return 0, false
	}
}

// LatePeriod returns the variable late period, zero when not configured.
func (i Info) LatePeriod() time.Duration { return i.latePeriod }

// Resolve classifies a handin time. A nil handin is NOT_RECEIVED regardless of policy.
func (i Info) Resolve(handin *time.Time, ext *Extension) Resolution {
	if handin == nil {
		return Resolution{Status: StatusNotReceived}
	}

	effective := i.withExtension(ext)
	switch effective.Kind() {
	case KindFixed:
		return effective.resolveFixed(*handin)
	case KindVariable:
		return effective.resolveVariable(*handin)
	default:
		return Resolution{Status: StatusOnTime}
	}
}

func (i Info) withExtension(ext *Extension) Info {
	if ext == nil || i.Kind() == KindNone {
		return i
	}

	shift := ext.OnTime.Sub(i.onTime)
	out := i
	out.onTime = ext.OnTime

	if !ext.ShiftDates {
		out.early = nil
		out.late = nil
		return out
	}

	if i.early != nil {
		shifted := i.early.Add(shift)
		out.early = &shifted
	}
	if i.late != nil {
		shifted := i.late.Add(shift)
		out.late = &shifted
	}
	return out
}

func (i Info) resolveFixed(handin time.Time) Resolution {
	if i.early != nil && !handin.After(*i.early) {
		return Resolution{Status: StatusEarly, Points: i.earlyPoints}
	}
	if !handin.After(i.onTime) {
		return Resolution{Status: StatusOnTime}
	}
	if i.late != nil && !handin.After(*i.late) {
		return Resolution{Status: StatusLate, Points: i.latePoints}
	}
	return Resolution{Status: StatusNCLate, Points: math.NaN()}
}

func (i Info) resolveVariable(handin time.Time) Resolution {
	if !handin.After(i.onTime) {
		return Resolution{Status: StatusOnTime}
	}
	if i.latePeriod <= 0 {
		return Resolution{Status: StatusNCLate, Points: math.NaN()}
	}
	if i.late != nil && handin.After(*i.late) {
		return Resolution{Status: StatusNCLate, Points: math.NaN()}
	}

	elapsed := handin.Sub(i.onTime)
	units := elapsed / i.latePeriod
	if elapsed%i.latePeriod != 0 {
		units++
	}

	return Resolution{Status: StatusLate, Points: float64(units) * i.latePoints}
}
