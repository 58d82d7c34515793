package echoapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/session"
	cachesvc "github.com/mystudenthub/backend/services/cache"
)

func Test_sessionApi_logoutSignsOut(t *testing.T) {
	conf := core.NewTestConfig()
	revoker := cachesvc.NewLRURevoker(conf)
	api := sessionApi{deps: &Deps{Conf: conf, Revoker: revoker}}

	sess := session.New("u1")
	var seen []session.State
	sess.Observe(func(st session.State) { seen = append(seen, st) })

	req := httptest.NewRequest(http.MethodPost, "/v1/session/logout", nil)
	req = req.WithContext(session.WithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	ctx := echo.New().NewContext(req, rec)
	ctx.Set(contextClaimsKey, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "tok-1",
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})

	require.NoError(t, api.logout(ctx))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	t.Run("Should sign the session out", func(t *testing.T) {
		st := sess.State()
		assert.True(t, st.Resolved())
		assert.Empty(t, st.UID)
		assert.Nil(t, st.Role)
		require.Len(t, seen, 2)
		assert.Empty(t, seen[1].UID)
	})

	t.Run("Should revoke the token", func(t *testing.T) {
		revoked, err := revoker.IsRevoked(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.True(t, revoked)
	})
}
