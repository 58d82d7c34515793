package circle

import (
	"github.com/mystudenthub/backend/core/user"
)

// Select returns the circle with the given id, or nil if there is none.
func Select(circles []Circle, id string) *Circle {
	if id == "" {
		return nil
	}
	for i := range circles {
		if circles[i].ID == id {
			c := circles[i]
			return &c
		}
	}
	return nil
}

// Chooser is the selection state shown to users who may pick a circle.
type Chooser struct {
	Options  []Circle `json:"options"`
	Selected *Circle  `json:"selected"`

	onSelect func(*Circle)
}

// NewChooser returns nil for students: their circle is the one on their profile and cannot be picked.
// onSelect may be nil.
func NewChooser(circles []Circle, selectedID string, role user.Role, onSelect func(*Circle)) *Chooser {
	if role == user.RoleStudent {
		return nil
	}
	opts := make([]Circle, len(circles))
	copy(opts, circles)
	return &Chooser{
		Options:  opts,
		Selected: Select(opts, selectedID),
		onSelect: onSelect,
	}
}

// Choose selects the circle with the given id and reports it to onSelect.
// An unknown id clears the selection and reports nil.
func (ch *Chooser) Choose(id string) *Circle {
	ch.Selected = Select(ch.Options, id)
	if ch.onSelect != nil {
		ch.onSelect(ch.Selected)
	}
	return ch.Selected
}
