package deadline

import (
	"fmt"
	"time"
)

// FixedConfig holds the fields of a fixed deadline. Early and late dates each
// require their points and vice versa.
type FixedConfig struct {
	Early       *time.Time
	EarlyPoints *float64
	OnTime      time.Time
	Late        *time.Time
	LatePoints  *float64
}

// VariableConfig holds the fields of a variable deadline. LatePoints and
// LatePeriod must be supplied together.
type VariableConfig struct {
	OnTime     time.Time
	Late       *time.Time
	LatePoints *float64
	LatePeriod *time.Duration
}

// NewFixed validates and builds a fixed deadline.
func NewFixed(cfg FixedConfig) (Info, error) {
	if cfg.OnTime.IsZero() {
		return Info{}, fmt.Errorf("%w: fixed deadline requires an on-time date", ErrInvalidConfiguration)
	}
	if (cfg.Early == nil) != (cfg.EarlyPoints == nil) {
		return Info{}, fmt.Errorf("%w: early date and early points must be set together", ErrInvalidConfiguration)
	}
	if (cfg.Late == nil) != (cfg.LatePoints == nil) {
		return Info{}, fmt.Errorf("%w: late date and late points must be set together", ErrInvalidConfiguration)
	}

	info := Info{kind: KindFixed, onTime: cfg.OnTime}

	if cfg.Early != nil {
		if !cfg.Early.Before(cfg.OnTime) {
			return Info{}, fmt.Errorf("%w: early date must precede on-time date", ErrInvalidConfiguration)
		}
		early := *cfg.Early
		info.early = &early
		info.earlyPoints = *cfg.EarlyPoints
	}

	if cfg.Late != nil {
		if !cfg.Late.After(cfg.OnTime) {
			return Info{}, fmt.Errorf("%w: late date must follow on-time date", ErrInvalidConfiguration)
		}
		late := *cfg.Late
		info.late = &late
		info.latePoints = *cfg.LatePoints
	}

	return info, nil
}

// NewVariable validates and builds a variable deadline. The sign of LatePoints
// is kept as given; callers pass a negative value for a deduction.
func NewVariable(cfg VariableConfig) (Info, error) {
	if cfg.OnTime.IsZero() {
		return Info{}, fmt.Errorf("%w: variable deadline requires an on-time date", ErrInvalidConfiguration)
	}
	if (cfg.LatePoints == nil) != (cfg.LatePeriod == nil) {
		return Info{}, fmt.Errorf("%w: late points and late period must be set together", ErrInvalidConfiguration)
	}

	info := Info{kind: KindVariable, onTime: cfg.OnTime}

	if cfg.LatePeriod != nil {
		if *cfg.LatePeriod <= 0 {
			return Info{}, fmt.Errorf("%w: late period must be positive", ErrInvalidConfiguration)
		}
		info.latePeriod = *cfg.LatePeriod
		info.latePoints = *cfg.LatePoints
	}

	if cfg.Late != nil {
		if !cfg.Late.After(cfg.OnTime) {
			return Info{}, fmt.Errorf("%w: late date must follow on-time date", ErrInvalidConfiguration)
		}
		late := *cfg.Late
		info.late = &late
	}

	return info, nil
}
