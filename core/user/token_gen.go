package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var tokenSalt = []byte("mystudenthub.core.user.token_gen")

// resetTokenGenerator makes single use password reset tokens.
// A token embeds its day of issue and is signed over the identity's password hash and last login,
// so it stops working once the password changes or the user signs in again.
type resetTokenGenerator struct {
	key     [32]byte
	timeout time.Duration
	nowFunc func() time.Time // mockable
}

func newResetTokenGenerator(secret string, timeout time.Duration) *resetTokenGenerator {
	return &resetTokenGenerator{
		key:     sha256.Sum256(append(append([]byte{}, tokenSalt...), secret...)),
		timeout: timeout,
		nowFunc: time.Now,
	}
}

// encodeUID base64 encodes given uid
func encodeUID(uid string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(uid))
}

// decodeUID base64 decodes given encoded uid
func decodeUID(encoded string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

func (g *resetTokenGenerator) makeToken(idt Identity) (string, error) {
	return g.makeTokenWithTimestamp(idt, numDaysSince2001(g.nowFunc()))
}

func (g *resetTokenGenerator) verifyToken(idt Identity, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return ErrInvalidToken
	}

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(parts[0])
	if err != nil {
		return ErrInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return ErrInvalidToken
	}

	// check that token has not been tampered with
	expected, err := g.makeTokenWithTimestamp(idt, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 0 {
		return ErrInvalidToken
	}

	// check that the timestamp is within limit
	if (numDaysSince2001(time.Now()) - ts) > int(g.timeout/(24*time.Hour)) {
		return ErrTokenExpired
	}
	return nil
}

func (g *resetTokenGenerator) makeTokenWithTimestamp(idt Identity, ts int) (string, error) {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	h := hmac.New(sha256.New, g.key[:])
	if _, err := h.Write(hashValue(idt, ts)); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", tsB32, base64.RawURLEncoding.EncodeToString(h.Sum(nil))), nil
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func hashValue(idt Identity, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(idt.UID)
	val.Write(idt.PasswordHash)
	if !idt.LastLogin.IsZero() {
		val.WriteString(idt.LastLogin.UTC().Format(time.RFC3339Nano))
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
