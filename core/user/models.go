package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mystudenthub/backend/core"
)

// Role is the single source of truth for what a user may do.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

var Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// ProfileCollection returns the collection holding the role's Profile Record, or "" if the role has none.
func (r Role) ProfileCollection() string {
	switch r {
	case RoleTeacher:
		return CollectionTeachers
	case RoleStudent:
		return CollectionStudents
	}
	return ""
}

func (r Role) Ptr() *Role { return &r }

// Collections
const (
	CollectionUsers    = "users"
	CollectionTeachers = "teachers"
	CollectionStudents = "students"
)

type Status string

const (
	StatusActive   Status = "Active"
	StatusDisabled Status = "Disabled"
)

func (s Status) Valid() bool { return s == StatusActive || s == StatusDisabled }

// User is the User Record stored at users/{uid}.
type User struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"` // UTC
	CreatedBy string    `json:"createdBy"`
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsStudent() bool { return u.Role == RoleStudent }
func (u User) IsActive() bool  { return u.Status == StatusActive }

func (u User) Path() string { return CollectionUsers + "/" + u.UID }

// ProfileRecord is the role-specific record stored at teachers/{uid} or students/{uid}.
type ProfileRecord struct {
	UID       string                 `json:"uid"`
	Email     string                 `json:"email"`
	Role      Role                   `json:"role"`
	Name      string                 `json:"name"`
	Attrs     map[string]interface{} `json:"attrs"`
	CreatedAt time.Time              `json:"createdAt"`
	CreatedBy string                 `json:"createdBy"`
}

func (p ProfileRecord) Collection() string { return p.Role.ProfileCollection() }

func (p ProfileRecord) Path() string { return p.Collection() + "/" + p.UID }

// CircleID returns the semester group of a student profile.
func (p ProfileRecord) CircleID() string {
	if id, ok := p.Attrs["circleId"].(string); ok {
		return id
	}
	return ""
}

// Batch is the set of documents written atomically when a user is provisioned.
// User overwrites users/{uid}; Profile, when set, is merged into its collection.
type Batch struct {
	User    User
	Profile *ProfileRecord
}

// QueryFilter applies an AND on its set fields.
// Search does a case-insensitive match on one of User.Name or User.Email.
type QueryFilter struct {
	Search string `query:"search"`
	Role   Role   `query:"role"`
	Status Status `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// OrderingFields maps public ordering names to columns.
var OrderingFields = map[string]string{
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"createdAt": "created_at",
}

// UpdateStatus is used by admins to enable or disable an account.
type UpdateStatus struct {
	Status Status `json:"status" validate:"required,userstatus"`
}

func (us UpdateStatus) Validate(validate *validator.Validate) error { return validate.Struct(us) }

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }
