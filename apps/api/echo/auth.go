package echoapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/access"
	"github.com/mystudenthub/backend/core/session"
	"github.com/mystudenthub/backend/core/user"
)

const (
	contextClaimsKey = "claims"
	tokenAudience    = "MyStudentHub"
)

// Claims represents the authorization claims transmitted via a JWT.
// RegisteredClaims.ID identifies the token for revocation.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         user.Role `json:"role,omitempty"`
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer struct {
	key           []byte
	issuer        string
	expiration    time.Duration
	refreshWindow time.Duration
	nowFunc       func() time.Time
}

func NewTokenIssuer(conf *core.Config) *TokenIssuer {
	return &TokenIssuer{
		key:           []byte(conf.SecretKey),
		issuer:        conf.AppName,
		expiration:    conf.Server.JWTExpirationDelta,
		refreshWindow: conf.Server.JWTRefreshExpirationDelta,
		nowFunc:       time.Now,
	}
}

// UserClaims returns fresh claims for usr. origIat carries the first issue time over refreshes.
func (ti *TokenIssuer) UserClaims(usr user.User, origIat ...int64) *Claims {
	now := ti.nowFunc()

	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ti.issuer,
			Subject:   usr.UID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// Generate returns the signed token string representing claims.
func (ti *TokenIssuer) Generate(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Parse verifies tokenString and returns its claims.
func (ti *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(
		tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return ti.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(ti.nowFunc),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// RefreshExpired reports whether claims were first issued longer ago than the refresh window.
func (ti *TokenIssuer) RefreshExpired(claims *Claims) bool {
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.refreshWindow)
	return ti.nowFunc().After(expTime)
}

// authMiddleware verifies the bearer token, then resolves the session of its subject
// and stores it in the request context.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || tokenString == "" {
			return errMissingToken
		}
		claims, err := s.tokens.Parse(tokenString)
		if err != nil {
			return errInvalidToken
		}

		reqCtx := ctx.Request().Context()
		revoked, err := s.deps.Revoker.IsRevoked(reqCtx, claims.ID)
		if err != nil {
			return errors.Wrap(err, "checking token revocation")
		}
		if revoked {
			return errInvalidToken
		}
		ctx.Set(contextClaimsKey, claims)

		sess := session.New(claims.Subject)
		if _, err = sess.Resolve(reqCtx, s.deps.UserSvc); err != nil {
			return errors.Wrap(err, "resolving session")
		}
		ctx.SetRequest(ctx.Request().WithContext(session.WithSession(reqCtx, sess)))
		return next(ctx)
	}
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return claims, nil
	}
	return nil, errUnauthorized
}

// getSessionState returns the resolved session of the request.
func getSessionState(ctx echo.Context) (session.State, error) {
	sess, ok := session.FromContext(ctx.Request().Context())
	if !ok {
		return session.State{}, errUnauthorized
	}
	return sess.State(), nil
}

// getSubject returns the acting user as seen by the access policy.
func getSubject(ctx echo.Context) access.Subject {
	state, err := getSessionState(ctx)
	if err != nil {
		return access.Subject{}
	}
	return access.SubjectOf(state)
}

// getContextUser returns the active User Record behind the request.
func getContextUser(ctx echo.Context) (user.User, error) {
	state, err := getSessionState(ctx)
	if err != nil {
		return user.User{}, err
	}
	if state.User == nil {
		return user.User{}, errUnauthorized
	}
	if state.Role == nil {
		return *state.User, errAccountDisabled
	}
	return *state.User, nil
}
