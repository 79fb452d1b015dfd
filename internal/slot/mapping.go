package slot

// Detector handedness labels.
const (
	LabelLeft  = "Left"
	LabelRight = "Right"
)

// Mapping converts detector handedness labels into logical sides.
//
// Detectors label hands from the camera's point of view, and whether the
// frame is mirrored before detection changes which physical hand that is.
// Neither choice is assumed: Mirrored selects it explicitly.
type Mapping struct {
	Mirrored bool
}

// SideOf returns the logical side for a detector label. Unknown labels
// return false.
func (m Mapping) SideOf(label string) (Side, bool) {
	var side Side
	switch label {
	case LabelLeft:
		side = Left
	case LabelRight:
		side = Right
	default:
		return 0, false
	}
	if m.Mirrored {
		side = 1 - side
	}
	return side, true
}
