package access

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/broadcast"
	"github.com/mystudenthub/backend/core/user"
)

var (
	admin    = Subject{UID: "a1", Role: user.RoleAdmin.Ptr()}
	teacher  = Subject{UID: "t1", Role: user.RoleTeacher.Ptr()}
	teacher2 = Subject{UID: "t2", Role: user.RoleTeacher.Ptr()}
	student  = Subject{UID: "s1", Role: user.RoleStudent.Ptr()}
	noRole   = Subject{UID: "x1"}
)

func TestPolicy_Allowed(t *testing.T) {
	p := NewPolicy()
	material := Resource{Collection: CollectionMaterials, ID: "m1", OwnerUID: "t1"}

	tests := []struct {
		name string
		sub  Subject
		op   core.Operation
		res  Resource
		want bool
	}{
		{name: "no role denied", sub: noRole, op: core.OpGet, res: material},
		{name: "unknown collection", sub: admin, op: core.OpGet, res: Resource{Collection: "grades"}},

		{name: "user reads self", sub: student, op: core.OpGet, res: Resource{Collection: user.CollectionUsers, ID: "s1", OwnerUID: "s1"}, want: true},
		{name: "user reads other", sub: student, op: core.OpGet, res: Resource{Collection: user.CollectionUsers, ID: "t1", OwnerUID: "t1"}},
		{name: "admin lists users", sub: admin, op: core.OpList, res: Resource{Collection: user.CollectionUsers}, want: true},
		{name: "teacher lists users", sub: teacher, op: core.OpList, res: Resource{Collection: user.CollectionUsers}},
		{name: "admin writes users", sub: admin, op: core.OpWrite, res: Resource{Collection: user.CollectionUsers}, want: true},

		{name: "teacher lists students", sub: teacher, op: core.OpList, res: Resource{Collection: user.CollectionStudents}, want: true},
		{name: "student lists students", sub: student, op: core.OpList, res: Resource{Collection: user.CollectionStudents}},
		{name: "student updates own profile", sub: student, op: core.OpUpdate, res: Resource{Collection: user.CollectionStudents, ID: "s1", OwnerUID: "s1"}, want: true},
		{name: "student creates profile", sub: student, op: core.OpCreate, res: Resource{Collection: user.CollectionStudents, ID: "s1", OwnerUID: "s1"}},
		{name: "teacher reads own profile", sub: teacher, op: core.OpGet, res: Resource{Collection: user.CollectionTeachers, ID: "t1", OwnerUID: "t1"}, want: true},

		{name: "student reads material", sub: student, op: core.OpGet, res: material, want: true},
		{name: "student creates material", sub: student, op: core.OpCreate, res: material},
		{name: "teacher creates material", sub: teacher, op: core.OpCreate, res: material, want: true},
		{name: "author updates material", sub: teacher, op: core.OpUpdate, res: material, want: true},
		{name: "other teacher deletes material", sub: teacher2, op: core.OpDelete, res: material},
		{name: "admin deletes material", sub: admin, op: core.OpDelete, res: material, want: true},
		{name: "author writes material", sub: teacher, op: core.OpWrite, res: material, want: true},

		{name: "student lists circles", sub: student, op: core.OpList, res: Resource{Collection: CollectionCircles}, want: true},
		{name: "teacher creates circle", sub: teacher, op: core.OpCreate, res: Resource{Collection: CollectionCircles}},

		{name: "admin sends notification", sub: admin, op: core.OpCreate, res: Resource{Collection: CollectionNotifications}, want: true},
		{name: "teacher sends notification", sub: teacher, op: core.OpCreate, res: Resource{Collection: CollectionNotifications}},
		{name: "register own push token", sub: student, op: core.OpCreate, res: Resource{Collection: CollectionPushTokens, ID: "tok", OwnerUID: "s1"}, want: true},
		{name: "register push token for other", sub: admin, op: core.OpCreate, res: Resource{Collection: CollectionPushTokens, ID: "tok", OwnerUID: "s1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Allowed(tt.sub, tt.op, tt.res))
		})
	}
}

func TestEnforcer_Check(t *testing.T) {
	ctx := context.Background()
	bus := broadcast.NewBus(nil)
	var events []*core.PermissionError
	unsub := bus.Subscribe(func(_ context.Context, ev *core.PermissionError) { events = append(events, ev) })
	defer unsub()

	e := NewEnforcer(NewPolicy(), bus)

	t.Run("Should allow without publishing", func(t *testing.T) {
		err := e.Check(ctx, teacher, core.OpCreate, Resource{Collection: CollectionMaterials})
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("Should publish and return denials", func(t *testing.T) {
		data := map[string]interface{}{"title": "Sneaky"}
		err := e.Check(ctx, student, core.OpCreate, Resource{Collection: CollectionMaterials, ID: "m9", Data: data})
		require.Error(t, err)

		perr, ok := errors.Cause(err).(*core.PermissionError)
		require.True(t, ok)
		assert.Equal(t, "materials/m9", perr.Path)
		assert.Equal(t, core.OpCreate, perr.Operation)
		assert.Equal(t, data, perr.RequestResourceData)
		assert.Equal(t, "s1", perr.ActorUID)

		require.Len(t, events, 1)
		assert.Same(t, perr, events[0])
	})

	t.Run("Should still deny without a publisher", func(t *testing.T) {
		err := NewEnforcer(NewPolicy(), nil).Check(ctx, noRole, core.OpGet, Resource{Collection: CollectionCircles})
		assert.Error(t, err)
	})
}
