package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/noah-isme/gema-grader/internal/deadline"
)

func newDeadlineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadline",
		Short: "Resolve a handin time against a deadline without touching the database",
		Example: `  gradectl deadline --kind fixed --on-time 2026-03-01T23:59:00Z \
    --late 2026-03-03T23:59:00Z --late-points -10 --handin 2026-03-02T10:00:00Z`,
		Args: cobra.NoArgs,
		RunE: runDeadline,
	}

	f := cmd.Flags()
	f.String("kind", string(deadline.KindFixed), "deadline kind: none, fixed or variable")
	f.String("on-time", "", "on-time date (RFC 3339)")
	f.String("early", "", "early date (fixed only)")
	f.Float64("early-points", 0, "points awarded for an early handin (fixed only)")
	f.String("late", "", "late cutoff date")
	f.Float64("late-points", 0, "points for a late handin; per period for variable deadlines")
	f.Duration("late-period", 0, "length of one late period (variable only)")
	f.String("handin", "", "handin time; omitted means not received")
	f.String("extension", "", "extended on-time date")
	f.Bool("shift-dates", false, "shift the other boundaries by the extension")
	f.Float64("earned", math.NaN(), "unadjusted event total, to print the adjusted score")
	return cmd
}

func runDeadline(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()

	info, err := deadlineFromFlags(f)
	if err != nil {
		return err
	}

	handinAt, err := optionalTime(f, "handin")
	if err != nil {
		return err
	}

	var ext *deadline.Extension
	extAt, err := optionalTime(f, "extension")
	if err != nil {
		return err
	}
	if extAt != nil {
		shift, _ := f.GetBool("shift-dates")
		ext = &deadline.Extension{OnTime: *extAt, ShiftDates: shift}
	}

	resolution := info.Resolve(handinAt, ext)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "kind:   %s\n", info.Kind())
	fmt.Fprintf(out, "status: %s\n", resolution.Status)
	if resolution.IsNoCredit() {
		fmt.Fprintln(out, "points: no credit")
	} else {
		fmt.Fprintf(out, "points: %g\n", resolution.Points)
	}

	if earned, _ := f.GetFloat64("earned"); !math.IsNaN(earned) {
		adjustment := resolution.Apply(earned)
		fmt.Fprintf(out, "total:  %g (%+g)\n", earned+adjustment, adjustment)
	}
	return nil
}

func deadlineFromFlags(f *pflag.FlagSet) (deadline.Info, error) {
	raw, _ := f.GetString("kind")
	kind, err := deadline.ParseKind(raw)
	if err != nil {
		return deadline.Info{}, err
	}
	if kind == deadline.KindNone {
		return deadline.None(), nil
	}

	onTime, err := optionalTime(f, "on-time")
	if err != nil {
		return deadline.Info{}, err
	}
	if onTime == nil {
		return deadline.Info{}, fmt.Errorf("%w: --on-time is required for %s deadlines", deadline.ErrInvalidConfiguration, kind)
	}

	late, err := optionalTime(f, "late")
	if err != nil {
		return deadline.Info{}, err
	}
	latePoints := optionalFloat(f, "late-points")

	if kind == deadline.KindVariable {
		var period *time.Duration
		if f.Changed("late-period") {
			p, _ := f.GetDuration("late-period")
			period = &p
		}
		return deadline.NewVariable(deadline.VariableConfig{
			OnTime:     *onTime,
			Late:       late,
			LatePoints: latePoints,
			LatePeriod: period,
		})
	}

	early, err := optionalTime(f, "early")
	if err != nil {
		return deadline.Info{}, err
	}
	return deadline.NewFixed(deadline.FixedConfig{
		Early:       early,
		EarlyPoints: optionalFloat(f, "early-points"),
		OnTime:      *onTime,
		Late:        late,
		LatePoints:  latePoints,
	})
}

func optionalTime(f *pflag.FlagSet, name string) (*time.Time, error) {
	raw, _ := f.GetString(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return &t, nil
}

func optionalFloat(f *pflag.FlagSet, name string) *float64 {
	if !f.Changed(name) {
		return nil
	}
	v, _ := f.GetFloat64(name)
	return &v
}
