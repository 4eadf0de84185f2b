package podds

import (
	"fmt"
	"math"
)

// PitchConfig describes the coordinate frame shot locations arrive in.
// Providers disagree on units so nothing here is a hidden constant.
// Shots attack towards x = FrameExtent and the goal is centred on
// y = FrameExtent / 2.
type PitchConfig struct {
	Name        string  `json:"name" yaml:"name"`
	Length      float64 `json:"length" yaml:"length"`           // metres spanned by the x axis of the frame
	Width       float64 `json:"width" yaml:"width"`             // metres spanned by the y axis of the frame
	GoalWidth   float64 `json:"goalWidth" yaml:"goalWidth"`     // distance between the posts in metres
	FrameExtent float64 `json:"frameExtent" yaml:"frameExtent"` // input range on both axes, 100 for percentages
}

// GoalMouthWidth is the regulation distance between the posts
const GoalMouthWidth = 7.32

var (
	// WyscoutPitch is the full 105 x 68 m pitch in a 0-100 frame
	WyscoutPitch = PitchConfig{Name: "wyscout", Length: 105, Width: 68, GoalWidth: GoalMouthWidth, FrameExtent: 100}
	// HalfPitch is a 0-100 frame spanning only the attacking half
	HalfPitch = PitchConfig{Name: "half", Length: 52.5, Width: 68, GoalWidth: GoalMouthWidth, FrameExtent: 100}

	PitchPresets = map[string]PitchConfig{
		WyscoutPitch.Name: WyscoutPitch,
		HalfPitch.Name:    HalfPitch,
	}
)

// Validate checks the frame can actually be used for scaling
func (p PitchConfig) Validate() error {
	for name, v := range map[string]float64{
		"length":      p.Length,
		"width":       p.Width,
		"goalWidth":   p.GoalWidth,
		"frameExtent": p.FrameExtent,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("pitch %s must be a positive number, got %v: %w", name, v, ErrInvalidInput)
		}
	}
	return nil
}

// checkCoordinates rejects values that would otherwise turn into NaN
// distances. Values outside the frame are allowed and simply extrapolate.
func checkCoordinates(x, y float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fmt.Errorf("x coordinate %v is not a finite number: %w", x, ErrInvalidInput)
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return fmt.Errorf("y coordinate %v is not a finite number: %w", y, ErrInvalidInput)
	}
	return nil
}

// TransformCoordinates converts frame coordinates into metres in front of the
// goal line (mx) and metres either side of the goal centre (cy, never negative)
func (p PitchConfig) TransformCoordinates(x, y float64) (mx, cy float64, err error) {
	if err := checkCoordinates(x, y); err != nil {
		return 0, 0, err
	}
	mx = (p.FrameExtent - x) * p.Length / p.FrameExtent
	cy = math.Abs(y-p.FrameExtent/2) * p.Width / p.FrameExtent
	return mx, cy, nil
}

// ShotDistance is the straight line distance in metres to the centre of the goal
func (p PitchConfig) ShotDistance(x, y float64) (float64, error) {
	mx, cy, err := p.TransformCoordinates(x, y)
	if err != nil {
		return 0, err
	}
	return math.Hypot(mx, cy), nil
}

// ShotAngle is the angle in radians the goal mouth subtends from the shot
func (p PitchConfig) ShotAngle(x, y float64) (float64, error) {
	mx, cy, err := p.TransformCoordinates(x, y)
	if err != nil {
		return 0, err
	}
	return goalAngle(mx, cy, p.GoalWidth), nil
}

// goalAngle evaluates atan(w*mx / (mx^2 + cy^2 - (w/2)^2)).
// Inside the circle through both posts the denominator goes negative and
// atan lands in (-pi/2, 0); adding pi moves it to the true obtuse angle.
// On the goal line itself the angle is pi between the posts and 0 outside.
func goalAngle(mx, cy, w float64) float64 {
	half := w / 2
	if mx == 0 {
		if cy < half {
			return math.Pi
		}
		return 0
	}
	a := math.Atan(w * mx / (mx*mx + cy*cy - half*half))
	if a < 0 {
		a += math.Pi
	}
	return a
}
