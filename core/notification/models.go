// Package notification sends push notifications to the devices users registered.
package notification

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mystudenthub/backend/core"
)

// Notification is what the receiving device displays.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
}

// Message is the push payload: {"notification": {"title": ..., "body": ..., "icon": ...}}.
type Message struct {
	Notification Notification `json:"notification"`
}

// Token is a device token registered at push_tokens/{token}.
type Token struct {
	Token     string    `json:"token"`
	UID       string    `json:"uid"`
	CreatedAt time.Time `json:"createdAt"` // UTC
}

type NewToken struct {
	Token string `json:"token" validate:"required,notblank,max=4096"`
}

func (nt *NewToken) Validate(validate *validator.Validate) error {
	nt.Token = core.CleanString(nt.Token)
	return validate.Struct(nt)
}

// Audience kinds
const (
	AudienceUser   = "user"
	AudienceCircle = "circle"
	AudienceAll    = "all"
)

// NewNotification is sent by admins. Target names the user or circle for those audiences.
type NewNotification struct {
	Title    string `json:"title" validate:"required,notblank,max=200"`
	Body     string `json:"body" validate:"required,notblank,max=2000"`
	Icon     string `json:"icon" validate:"omitempty,url"`
	Audience string `json:"audience" validate:"required,oneof=user circle all"`
	Target   string `json:"target" validate:"required_unless=Audience all"`
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Body = core.CleanString(nn.Body)
	nn.Icon = core.CleanString(nn.Icon)
	nn.Target = core.CleanString(nn.Target)
	return validate.Struct(nn)
}

// Result counts deliveries per device token.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
