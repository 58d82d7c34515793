package user

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
)

// Profile is the role-specific initial profile given at provisioning time.
// Exactly one variant exists per Role.
type Profile interface {
	Role() Role
	DisplayName() string
	// Attrs returns the attributes stored on the Profile Record, nil for roles without one.
	Attrs() map[string]interface{}
}

type AdminProfile struct {
	Name string `json:"name" validate:"required,notblank"`
}

type TeacherProfile struct {
	Name        string   `json:"name" validate:"required,notblank"`
	Department  string   `json:"department"`
	Designation string   `json:"designation"`
	Phone       string   `json:"phone" validate:"omitempty,e164"`
	Subjects    []string `json:"subjects" validate:"omitempty,dive,notblank"`
}

type StudentProfile struct {
	Name       string `json:"name" validate:"required,notblank"`
	RollNumber string `json:"rollNumber"`
	CircleID   string `json:"circleId" validate:"required"`
	DegreeID   string `json:"degreeId"`
	StreamID   string `json:"streamId"`
	Semester   int    `json:"semester" validate:"omitempty,min=1,max=12"`
	Phone      string `json:"phone" validate:"omitempty,e164"`
}

var (
	_ Profile = AdminProfile{}
	_ Profile = TeacherProfile{}
	_ Profile = StudentProfile{}
)

func (p AdminProfile) Role() Role                    { return RoleAdmin }
func (p AdminProfile) DisplayName() string           { return p.Name }
func (p AdminProfile) Attrs() map[string]interface{} { return nil }

func (p TeacherProfile) Role() Role          { return RoleTeacher }
func (p TeacherProfile) DisplayName() string { return p.Name }
func (p TeacherProfile) Attrs() map[string]interface{} {
	attrs := map[string]interface{}{}
	setIfNotEmpty(attrs, "department", p.Department)
	setIfNotEmpty(attrs, "designation", p.Designation)
	setIfNotEmpty(attrs, "phone", p.Phone)
	if len(p.Subjects) > 0 {
		subjects := make([]interface{}, 0, len(p.Subjects))
		for _, s := range p.Subjects {
			subjects = append(subjects, s)
		}
		attrs["subjects"] = subjects
	}
	return attrs
}

func (p StudentProfile) Role() Role          { return RoleStudent }
func (p StudentProfile) DisplayName() string { return p.Name }
func (p StudentProfile) Attrs() map[string]interface{} {
	attrs := map[string]interface{}{"circleId": p.CircleID}
	setIfNotEmpty(attrs, "rollNumber", p.RollNumber)
	setIfNotEmpty(attrs, "degreeId", p.DegreeID)
	setIfNotEmpty(attrs, "streamId", p.StreamID)
	setIfNotEmpty(attrs, "phone", p.Phone)
	if p.Semester > 0 {
		attrs["semester"] = p.Semester
	}
	return attrs
}

func setIfNotEmpty(attrs map[string]interface{}, key, val string) {
	if val = core.CleanString(val); val != "" {
		attrs[key] = val
	}
}

// DecodeProfile decodes raw into the Profile variant matching role.
func DecodeProfile(role Role, raw json.RawMessage) (Profile, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch role {
	case RoleAdmin:
		var p AdminProfile
		err := json.Unmarshal(raw, &p)
		return p, err
	case RoleTeacher:
		var p TeacherProfile
		err := json.Unmarshal(raw, &p)
		return p, err
	case RoleStudent:
		var p StudentProfile
		err := json.Unmarshal(raw, &p)
		return p, err
	}
	return nil, nil
}

// NewUser contains information needed to provision a new User.
type NewUser struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password"`
	Role     Role    `json:"role" validate:"required,role"`
	Profile  Profile `json:"-" validate:"-"`
}

func (nu *NewUser) UnmarshalJSON(data []byte) error {
	var raw struct {
		Email    string          `json:"email"`
		Password string          `json:"password"`
		Role     Role            `json:"role"`
		Profile  json.RawMessage `json:"profile"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	profile, err := DecodeProfile(raw.Role, raw.Profile)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "profile", Error: "invalid profile"})
	}
	*nu = NewUser{Email: raw.Email, Password: raw.Password, Role: raw.Role, Profile: profile}
	return nil
}

// Validate cleans and validates nu. The password itself is checked by the IdentityProvider.
func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	if nu.Profile == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "profile", Error: "this field is required"})
	}
	if nu.Profile.Role() != nu.Role {
		return core.NewValidationError(
			errors.New("profile does not match role"),
			core.FieldError{Field: "profile", Error: "profile does not match role " + string(nu.Role)},
		)
	}
	return validate.Struct(nu.Profile)
}
