package climate

import (
	"fmt"
	"math"
	"strconv"
)

const SPEED_SCALE_MAX = 100

// SpeedScale maps numeric fan levels onto a 0-100 native scale split in
// Steps equal bands. Level 0 is auto.
type SpeedScale struct {
	Steps int
}

func NewSpeedScale(steps int) (SpeedScale, error) {
	if steps < 1 || steps > SPEED_SCALE_MAX {
		return SpeedScale{}, fmt.Errorf("%w: %d speed steps", ErrParse, steps)
	}
	return SpeedScale{Steps: steps}, nil
}

func (s SpeedScale) ToNative(level int) int {
	return int(math.Round(float64(level) * SPEED_SCALE_MAX / float64(s.Steps)))
}

func (s SpeedScale) FromNative(native int) int {
	level := int(math.Round(float64(native) * float64(s.Steps) / SPEED_SCALE_MAX))
	return max(0, min(level, s.Steps))
}

// FanModes lists auto followed by every numeric step.
func (s SpeedScale) FanModes() []FanMode {
	return StepFanModes(s.Steps)
}

func StepFanModes(steps int) []FanMode {
	modes := make([]FanMode, 0, steps+1)
	modes = append(modes, FanAuto)
	for i := 1; i <= steps; i++ {
		modes = append(modes, FanMode(strconv.Itoa(i)))
	}
	return modes
}

// LevelFanMode renders a numeric level, 0 being auto.
func LevelFanMode(level int) FanMode {
	if level == 0 {
		return FanAuto
	}
	return FanMode(strconv.Itoa(level))
}

// ParseLevel turns a fan mode into a numeric level in [0, steps].
func ParseLevel(mode FanMode, steps int) (int, error) {
	if mode == FanAuto {
		return 0, nil
	}
	level, err := strconv.Atoi(string(mode))
	if err != nil || level < 1 || level > steps {
		return 0, fmt.Errorf("%w: fan mode %q (steps: %d)", ErrUnsupportedOperation, mode, steps)
	}
	return level, nil
}
