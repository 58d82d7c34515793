package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mystudenthub/backend/apps/api/echo"
	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/material"
	"github.com/mystudenthub/backend/core/notification"
	"github.com/mystudenthub/backend/core/user"
)

func newMaterialBody(t *testing.T, title string, semester int) []byte {
	return marshalObj(t, material.NewMaterial{
		Title: title, URL: "https://example.com/" + title + ".pdf",
		DegreeID: "bsc", StreamID: "cs", Semester: semester, Subject: "Maths",
	})
}

func Test_materialApi(t *testing.T) {
	app := setup(t)
	c1 := app.createCircle(t, "BSc CS Sem 1", "bsc", "cs", 1)
	admin := app.createAdmin(t)
	teacher := app.createUser(t, user.RoleTeacher, "tina@test.cd", user.TeacherProfile{Name: "Tina"})
	teacher2 := app.createUser(t, user.RoleTeacher, "tom@test.cd", user.TeacherProfile{Name: "Tom"})
	student := app.createUser(t, user.RoleStudent, "sam@test.cd", user.StudentProfile{Name: "Sam", CircleID: c1.ID})
	teacherToken := app.getToken(t, teacher)
	studentToken := app.getToken(t, student)

	create := func(t *testing.T, title string, semester int) material.Material {
		rec := app.do(newAuthRequest(http.MethodPost, "/v1/materials", teacherToken, newMaterialBody(t, title, semester)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var m material.Material
		decode(t, rec, &m)
		return m
	}

	algebra := create(t, "algebra", 1)
	create(t, "calculus", 2)

	t.Run("Should stamp author and timestamps", func(t *testing.T) {
		assert.Equal(t, teacher.UID, algebra.AuthorID)
		assert.Equal(t, "Tina", algebra.AuthorName)
		assert.False(t, algebra.CreatedAt.IsZero())
		assert.Equal(t, algebra.CreatedAt, algebra.UpdatedAt)
	})

	app.run(t, []httpTest{
		{name: "Auth required", path: "/v1/materials", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Students cannot create", method: http.MethodPost, path: "/v1/materials", token: studentToken,
			body: newMaterialBody(t, "x", 1), wantCode: http.StatusForbidden,
		},
		{
			name: "Invalid data", method: http.MethodPost, path: "/v1/materials", token: teacherToken,
			body:     []byte(`{"title":" ","url":"nope","degreeId":"bsc","streamId":"cs","semester":1,"subject":"Maths"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title":"this field is required","url":"enter a valid URL"}`),
		},
		{name: "Unknown id", path: "/v1/materials/nope", token: studentToken, wantCode: http.StatusNotFound},
		{name: "Students read any material", path: "/v1/materials/" + algebra.ID, token: studentToken, wantData: marshalObj(t, algebra)},
		{
			name: "Other teachers cannot update", method: http.MethodPatch, path: "/v1/materials/" + algebra.ID,
			token: app.getToken(t, teacher2), body: []byte(`{"title":"mine"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Empty update", method: http.MethodPatch, path: "/v1/materials/" + algebra.ID,
			token: teacherToken, body: []byte(`{}`), wantCode: http.StatusBadRequest,
		},
		{name: "Missing ids delete fine", method: http.MethodDelete, path: "/v1/materials/nope", token: teacherToken, wantCode: http.StatusNoContent},
	})

	t.Run("Should scope student queries to their circle", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/materials?semester=2", studentToken))
		require.Equal(t, http.StatusOK, rec.Code)
		var got []material.Material
		decode(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, algebra.ID, got[0].ID)
	})

	t.Run("Should list every material for teachers", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/materials?ordering=-title", teacherToken))
		require.Equal(t, http.StatusOK, rec.Code)
		var got []material.Material
		decode(t, rec, &got)
		require.Len(t, got, 2)
		assert.Equal(t, "calculus", got[0].Title)
	})

	t.Run("Should update only the given fields", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodPatch, "/v1/materials/"+algebra.ID, app.getToken(t, admin), []byte(`{"title":"Linear algebra"}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got material.Material
		decode(t, rec, &got)
		assert.Equal(t, "Linear algebra", got.Title)
		assert.Equal(t, algebra.URL, got.URL)
		assert.Equal(t, algebra.CreatedAt, got.CreatedAt)
		assert.False(t, got.UpdatedAt.Before(algebra.UpdatedAt))
	})

	t.Run("Should serve fresh lists after writes", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodDelete, "/v1/materials/"+algebra.ID, teacherToken))
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = app.do(newAuthRequest(http.MethodGet, "/v1/materials", studentToken))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("Should broadcast denials", func(t *testing.T) {
		var ops []core.Operation
		for _, ev := range app.deniedEvents() {
			ops = append(ops, ev.Operation)
		}
		assert.Contains(t, ops, core.OpCreate)
		assert.Contains(t, ops, core.OpUpdate)
	})
}

func Test_circleApi(t *testing.T) {
	app := setup(t)
	c1 := app.createCircle(t, "BSc CS Sem 1", "bsc", "cs", 1)
	c2 := app.createCircle(t, "BSc CS Sem 2", "bsc", "cs", 2)
	admin := app.createAdmin(t)
	teacher := app.createUser(t, user.RoleTeacher, "tina@test.cd", user.TeacherProfile{Name: "Tina"})
	student := app.createUser(t, user.RoleStudent, "sam@test.cd", user.StudentProfile{Name: "Sam", CircleID: c2.ID})
	teacherToken := app.getToken(t, teacher)

	app.run(t, []httpTest{
		{name: "Students get no chooser", path: "/v1/circles", token: app.getToken(t, student), wantData: marshalObj(t, echoapi.CircleSelection{Circle: &c2})},
		{
			name: "Students cannot create", method: http.MethodPost, path: "/v1/admin/circles", token: app.getToken(t, student),
			body: []byte(`{"name":"x","degreeId":"bsc","streamId":"cs","semester":3}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Admins create", method: http.MethodPost, path: "/v1/admin/circles", token: app.getToken(t, admin),
			body: []byte(`{"name":"BSc CS Sem 3","degreeId":"bsc","streamId":"cs","semester":3}`), wantCode: http.StatusCreated,
		},
	})

	t.Run("Should render the chooser for teachers", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/circles?selected="+c1.ID, teacherToken))
		require.Equal(t, http.StatusOK, rec.Code)
		var sel echoapi.CircleSelection
		decode(t, rec, &sel)
		require.NotNil(t, sel.Chooser)
		assert.Len(t, sel.Chooser.Options, 3)
		require.NotNil(t, sel.Circle)
		assert.Equal(t, c1.ID, sel.Circle.ID)
	})

	t.Run("Should select nothing for unknown ids", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/circles?selected=nope", teacherToken))
		require.Equal(t, http.StatusOK, rec.Code)
		var sel echoapi.CircleSelection
		decode(t, rec, &sel)
		require.NotNil(t, sel.Chooser)
		assert.Nil(t, sel.Circle)
	})
}

func Test_notificationApi(t *testing.T) {
	app := setup(t)
	c1 := app.createCircle(t, "BSc CS Sem 1", "bsc", "cs", 1)
	c2 := app.createCircle(t, "BSc CS Sem 2", "bsc", "cs", 2)
	admin := app.createAdmin(t)
	s1 := app.createUser(t, user.RoleStudent, "sam@test.cd", user.StudentProfile{Name: "Sam", CircleID: c1.ID})
	s2 := app.createUser(t, user.RoleStudent, "sue@test.cd", user.StudentProfile{Name: "Sue", CircleID: c2.ID})
	adminToken := app.getToken(t, admin)

	app.run(t, []httpTest{
		{
			name: "Register s1", method: http.MethodPost, path: "/v1/notifications/tokens", token: app.getToken(t, s1),
			body: []byte(`{"token":"tok-s1"}`), wantCode: http.StatusNoContent,
		},
		{
			name: "Register s2", method: http.MethodPost, path: "/v1/notifications/tokens", token: app.getToken(t, s2),
			body: []byte(`{"token":"tok-s2"}`), wantCode: http.StatusNoContent,
		},
		{
			name: "Students cannot send", method: http.MethodPost, path: "/v1/admin/notifications", token: app.getToken(t, s1),
			body: []byte(`{"title":"Hi","body":"There","audience":"all"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Circle audience", method: http.MethodPost, path: "/v1/admin/notifications", token: adminToken,
			body:     []byte(`{"title":"Exam","body":"Tomorrow 9am","audience":"circle","target":"` + c1.ID + `"}`),
			wantData: marshalObj(t, notification.Result{Sent: 1}),
		},
		{
			name: "Missing target", method: http.MethodPost, path: "/v1/admin/notifications", token: adminToken,
			body: []byte(`{"title":"Exam","body":"Tomorrow 9am","audience":"user"}`), wantCode: http.StatusBadRequest,
		},
	})

	sent := app.push.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "tok-s1", sent[0].Token)
	assert.Equal(t, notification.Notification{Title: "Exam", Body: "Tomorrow 9am", Icon: app.conf.Push.DefaultIcon}, sent[0].Message.Notification)
}

func Test_dashboardApi(t *testing.T) {
	app := setup(t)
	c1 := app.createCircle(t, "BSc CS Sem 1", "bsc", "cs", 1)
	teacher := app.createUser(t, user.RoleTeacher, "tina@test.cd", user.TeacherProfile{Name: "Tina"})
	student := app.createUser(t, user.RoleStudent, "sam@test.cd", user.StudentProfile{Name: "Sam", CircleID: c1.ID})
	teacherToken := app.getToken(t, teacher)

	rec := app.do(newAuthRequest(http.MethodPost, "/v1/materials", teacherToken, newMaterialBody(t, "algebra", 1)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("teacher", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/dashboard", teacherToken))
		require.Equal(t, http.StatusOK, rec.Code)
		var dash echoapi.Dashboard
		decode(t, rec, &dash)
		assert.Equal(t, user.RoleTeacher, dash.Role)
		assert.Len(t, dash.Materials, 1)
		assert.Nil(t, dash.UserCounts)
	})

	t.Run("student", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/dashboard", app.getToken(t, student)))
		require.Equal(t, http.StatusOK, rec.Code)
		var dash echoapi.Dashboard
		decode(t, rec, &dash)
		assert.Equal(t, user.RoleStudent, dash.Role)
		require.NotNil(t, dash.Circle)
		assert.Equal(t, c1.ID, dash.Circle.ID)
		assert.Len(t, dash.Materials, 1)
	})
}
