package device

import "fmt"

// FocuserMover is the raw hardware move primitive a driver supplies;
// FocuserBase sequences calls to it to get backlash-from-below behavior.
type FocuserMover func(target float64) error

// FocuserBase sequences backlash-compensated moves, grounded on the
// original FocusWork::moveto (control/lib/focusing/FocusWork.cpp): movement
// always arrives at the target from below, so if the current position is
// above the target, the mechanism first overshoots to target-backlash
// (clamped at the axis minimum) before the final approach.
type FocuserBase struct {
	min, max, backlash float64
	current            float64
	move               FocuserMover
}

// NewFocuserBase returns a FocuserBase over [min, max] with the given
// backlash amount, driving moves through mover.
func NewFocuserBase(min, max, backlash float64, mover FocuserMover) *FocuserBase {
	return &FocuserBase{min: min, max: max, backlash: backlash, current: min, move: mover}
}

func (f *FocuserBase) Min() float64      { return f.min }
func (f *FocuserBase) Max() float64      { return f.max }
func (f *FocuserBase) Backlash() float64 { return f.backlash }

// Current returns the last position reached by MoveTo.
func (f *FocuserBase) Current() (float64, error) {
	return f.current, nil
}

// MoveTo validates target against [min, max] and, if approaching from
// above, first moves to target-backlash (or to min, if there isn't enough
// room) before the final move to target.
func (f *FocuserBase) MoveTo(target float64) error {
	if target < f.min {
		return fmt.Errorf("focuser move below min: %v < %v", target, f.min)
	}
	if target > f.max {
		return fmt.Errorf("focuser move above max: %v > %v", target, f.max)
	}

	if f.backlash > 0 && f.current > target {
		compensated := target - f.backlash
		if compensated < f.min {
			compensated = f.min
		}
		if err := f.move(compensated); err != nil {
			return err
		}
		f.current = compensated
	}

	if err := f.move(target); err != nil {
		return err
	}
	f.current = target
	return nil
}
