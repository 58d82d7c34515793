package user

import (
	"testing"
	"time"
)

func TestMakeVerifyToken(t *testing.T) {
	gen := newResetTokenGenerator("secret", 3*24*time.Hour)

	now := time.Now()
	idt := Identity{
		UID:       "8d3c3a52-1d7e-4c4b-9a55-0c8e0d1b5a11",
		Email:     "t@test.test",
		CreatedAt: now,
		LastLogin: now,
	}
	_ = idt.SetPassword("pwd")

	validToken, err := gen.makeToken(idt)
	if err != nil {
		t.Fatalf("makeToken() failed: %v", err)
	}

	// generate an expired token
	dayLate := gen.timeout + (24 * time.Hour)
	gen.nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, _ := gen.makeToken(idt)
	gen.nowFunc = time.Now // reset

	// a new login invalidates previous tokens
	loggedIn := idt
	loggedIn.LastLogin = now.Add(time.Minute)

	otherGen := newResetTokenGenerator("other secret", gen.timeout)

	tests := []struct {
		name    string
		gen     *resetTokenGenerator
		idt     Identity
		token   string
		wantErr error
	}{
		{name: "no token", gen: gen, idt: idt, wantErr: ErrInvalidToken},
		{name: "invalid parts len", gen: gen, idt: idt, token: "lmaooolol", wantErr: ErrInvalidToken},
		{name: "invalid base32", gen: gen, idt: idt, token: "hahaha-sigsig-sig", wantErr: ErrInvalidToken},
		{name: "invalid timestamp", gen: gen, idt: idt, token: "NRXWY-sigsig-sig", wantErr: ErrInvalidToken},
		{name: "invalid token", gen: gen, idt: idt, token: "HE4TS-sigsig-sig", wantErr: ErrInvalidToken},
		{name: "expired token", gen: gen, idt: idt, token: expiredToken, wantErr: ErrTokenExpired},
		{name: "used after login", gen: gen, idt: loggedIn, token: validToken, wantErr: ErrInvalidToken},
		{name: "other secret", gen: otherGen, idt: idt, token: validToken, wantErr: ErrInvalidToken},
		{name: "valid token", gen: gen, idt: idt, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.gen.verifyToken(tt.idt, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	uid := "8d3c3a52-1d7e-4c4b-9a55-0c8e0d1b5a11"
	got, err := decodeUID(encodeUID(uid))
	if err != nil {
		t.Fatalf("decodeUID() failed: %v", err)
	}
	if got != uid {
		t.Errorf("decodeUID() = %s, want %s", got, uid)
	}
	if _, err = decodeUID("!!not base64!!"); err == nil {
		t.Error("decodeUID() expected error")
	}
}
