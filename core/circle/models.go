// Package circle holds semester groups ("circles") and the selector used to pick one.
package circle

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mystudenthub/backend/core"
)

// Circle is a semester group stored at circles/{id}.
type Circle struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	DegreeID  string    `json:"degreeId"`
	StreamID  string    `json:"streamId"`
	Semester  int       `json:"semester"`
	CreatedAt time.Time `json:"createdAt"` // UTC
}

type NewCircle struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	DegreeID string `json:"degreeId" validate:"required"`
	StreamID string `json:"streamId" validate:"required"`
	Semester int    `json:"semester" validate:"required,min=1,max=12"`
}

func (nc *NewCircle) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}
