// Package access decides which document operations a resolved user may perform.
package access

import (
	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/session"
	"github.com/mystudenthub/backend/core/user"
)

// Collections guarded by the policy besides the user collections.
const (
	CollectionMaterials     = "materials"
	CollectionCircles       = "circles"
	CollectionNotifications = "notifications"
	CollectionPushTokens    = "push_tokens"
)

// Subject is the user attempting an operation. Role is nil when the session resolved to no role.
type Subject struct {
	UID  string
	Role *user.Role
}

func SubjectOf(state session.State) Subject {
	return Subject{UID: state.UID, Role: state.Role}
}

func (s Subject) is(role user.Role) bool { return s.Role != nil && *s.Role == role }

func (s Subject) signedIn() bool { return s.UID != "" && s.Role != nil }

// Resource is the document targeted by an operation.
// OwnerUID is the document's owner (the user itself for user documents, the author for materials).
type Resource struct {
	Collection string
	ID         string
	OwnerUID   string
	Data       map[string]interface{}
}

func (r Resource) Path() string {
	if r.ID == "" {
		return r.Collection
	}
	return r.Collection + "/" + r.ID
}

// Rule reports whether sub may perform op on res. op is never core.OpWrite.
type Rule func(sub Subject, op core.Operation, res Resource) bool

type Policy struct {
	rules map[string]Rule
}

// NewPolicy returns the default document policy.
func NewPolicy() *Policy {
	return &Policy{rules: map[string]Rule{
		user.CollectionUsers:    usersRule,
		user.CollectionTeachers: teachersRule,
		user.CollectionStudents: studentsRule,
		CollectionMaterials:     materialsRule,
		CollectionCircles:       circlesRule,
		CollectionNotifications: notificationsRule,
		CollectionPushTokens:    pushTokensRule,
	}}
}

// Allowed reports whether sub may perform op on res. Unknown collections and subjects without role are denied.
// core.OpWrite is allowed only if create, update and delete all are.
func (p *Policy) Allowed(sub Subject, op core.Operation, res Resource) bool {
	if !sub.signedIn() {
		return false
	}
	rule, ok := p.rules[res.Collection]
	if !ok {
		return false
	}
	if op == core.OpWrite {
		return rule(sub, core.OpCreate, res) && rule(sub, core.OpUpdate, res) && rule(sub, core.OpDelete, res)
	}
	return rule(sub, op, res)
}

func usersRule(sub Subject, op core.Operation, res Resource) bool {
	switch op {
	case core.OpGet:
		return sub.is(user.RoleAdmin) || sub.UID == res.OwnerUID
	default:
		return sub.is(user.RoleAdmin)
	}
}

func teachersRule(sub Subject, op core.Operation, res Resource) bool {
	switch op {
	case core.OpGet, core.OpUpdate:
		return sub.is(user.RoleAdmin) || sub.UID == res.OwnerUID
	default:
		return sub.is(user.RoleAdmin)
	}
}

func studentsRule(sub Subject, op core.Operation, res Resource) bool {
	switch op {
	case core.OpGet:
		return sub.is(user.RoleAdmin) || sub.is(user.RoleTeacher) || sub.UID == res.OwnerUID
	case core.OpList:
		return sub.is(user.RoleAdmin) || sub.is(user.RoleTeacher)
	case core.OpUpdate:
		return sub.is(user.RoleAdmin) || sub.UID == res.OwnerUID
	default:
		return sub.is(user.RoleAdmin)
	}
}

func materialsRule(sub Subject, op core.Operation, res Resource) bool {
	switch op {
	case core.OpGet, core.OpList:
		return true
	case core.OpCreate:
		return sub.is(user.RoleAdmin) || sub.is(user.RoleTeacher)
	default:
		return sub.is(user.RoleAdmin) || (sub.is(user.RoleTeacher) && sub.UID == res.OwnerUID)
	}
}

func circlesRule(sub Subject, op core.Operation, _ Resource) bool {
	switch op {
	case core.OpGet, core.OpList:
		return true
	default:
		return sub.is(user.RoleAdmin)
	}
}

func notificationsRule(sub Subject, op core.Operation, _ Resource) bool {
	return op == core.OpCreate && sub.is(user.RoleAdmin)
}

func pushTokensRule(sub Subject, op core.Operation, res Resource) bool {
	switch op {
	case core.OpCreate, core.OpUpdate, core.OpDelete:
		return sub.UID == res.OwnerUID
	default:
		return false
	}
}
