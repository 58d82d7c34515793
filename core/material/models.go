package material

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mystudenthub/backend/core"
)

// Material is a study material stored at materials/{id}.
type Material struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	DegreeID    string    `json:"degreeId"`
	StreamID    string    `json:"streamId"`
	Semester    int       `json:"semester"`
	Subject     string    `json:"subject"`
	AuthorID    string    `json:"authorId"`
	AuthorName  string    `json:"authorName"`
	CreatedAt   time.Time `json:"createdAt"` // UTC
	UpdatedAt   time.Time `json:"updatedAt"` // UTC
}

// NewMaterial contains the information needed to create a Material.
type NewMaterial struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
	URL         string `json:"url" validate:"required,url"`
	DegreeID    string `json:"degreeId" validate:"required"`
	StreamID    string `json:"streamId" validate:"required"`
	Semester    int    `json:"semester" validate:"required,min=1,max=12"`
	Subject     string `json:"subject" validate:"required,notblank"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	nm.URL = core.CleanString(nm.URL)
	nm.Subject = core.CleanString(nm.Subject)
	return validate.Struct(nm)
}

// UpdateMaterial defines what information may be provided to modify an existing Material.
// Nil fields are left unchanged.
type UpdateMaterial struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	URL         *string `json:"url" validate:"omitempty,url"`
	DegreeID    *string `json:"degreeId" validate:"omitempty,notblank"`
	StreamID    *string `json:"streamId" validate:"omitempty,notblank"`
	Semester    *int    `json:"semester" validate:"omitempty,min=1,max=12"`
	Subject     *string `json:"subject" validate:"omitempty,notblank"`
}

func (um *UpdateMaterial) Validate(validate *validator.Validate) error {
	for _, s := range []*string{um.Title, um.Description, um.URL, um.Subject} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(um)
}

func (um UpdateMaterial) IsEmpty() bool {
	return um.Title == nil && um.Description == nil && um.URL == nil && um.DegreeID == nil &&
		um.StreamID == nil && um.Semester == nil && um.Subject == nil
}

// Apply copies the set fields of um onto m.
func (um UpdateMaterial) Apply(m *Material) {
	if um.Title != nil {
		m.Title = *um.Title
	}
	if um.Description != nil {
		m.Description = *um.Description
	}
	if um.URL != nil {
		m.URL = *um.URL
	}
	if um.DegreeID != nil {
		m.DegreeID = *um.DegreeID
	}
	if um.StreamID != nil {
		m.StreamID = *um.StreamID
	}
	if um.Semester != nil {
		m.Semester = *um.Semester
	}
	if um.Subject != nil {
		m.Subject = *um.Subject
	}
}

// Data returns the set fields of um, keyed by JSON name.
func (um UpdateMaterial) Data() map[string]interface{} {
	data := map[string]interface{}{}
	if um.Title != nil {
		data["title"] = *um.Title
	}
	if um.Description != nil {
		data["description"] = *um.Description
	}
	if um.URL != nil {
		data["url"] = *um.URL
	}
	if um.DegreeID != nil {
		data["degreeId"] = *um.DegreeID
	}
	if um.StreamID != nil {
		data["streamId"] = *um.StreamID
	}
	if um.Semester != nil {
		data["semester"] = *um.Semester
	}
	if um.Subject != nil {
		data["subject"] = *um.Subject
	}
	return data
}

// QueryFilter applies an AND on its set fields.
type QueryFilter struct {
	DegreeID string `query:"degreeId"`
	StreamID string `query:"streamId"`
	Semester int    `query:"semester"`
	Subject  string `query:"subject"`
	AuthorID string `query:"authorId"`
}

func (qf *QueryFilter) Clean() {
	qf.Subject = core.CleanString(qf.Subject)
}

// OrderingFields maps public ordering names to columns.
var OrderingFields = map[string]string{
	"title":     "title",
	"subject":   "subject",
	"semester":  "semester",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}
