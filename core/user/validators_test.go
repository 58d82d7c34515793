package user

import "testing"

func Test_checkPasswordPolicy(t *testing.T) {
	tests := []struct {
		name  string
		pwd   string
		attrs []string
		want  string
	}{
		{name: "too short", pwd: "aB3$", want: pwdMinLenText},
		{name: "whitespace", pwd: "abc def ghi", want: pwdNoSpaceText},
		{name: "all numeric", pwd: "90817263", want: pwdNotAllNumText},
		{name: "similar to email", pwd: "jdoe@school.edu", attrs: []string{"jdoe@school.edu"}, want: pwdAttrSimText},
		{name: "similar to email local part", pwd: "jdoe1", attrs: []string{"jdoe@school.edu"}, want: pwdMinLenText},
		{name: "similar to name", pwd: "Kalinda!", attrs: []string{"", "kalinda"}, want: pwdAttrSimText},
		{name: "common", pwd: "Password1", want: pwdNoCommonText},
		{name: "ok", pwd: "t4ngerine-Sky", attrs: []string{"jdoe@school.edu"}},
		{name: "ok, 6 chars", pwd: "x7#kQp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkPasswordPolicy(tt.pwd, tt.attrs...); got != tt.want {
				t.Errorf("checkPasswordPolicy() = %q, want %q", got, tt.want)
			}
		})
	}
}
