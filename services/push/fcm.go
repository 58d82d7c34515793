// Package pushsvc delivers push notifications to devices.
package pushsvc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/notification"
)

type (
	fcmRequest struct {
		To string `json:"to"`
		notification.Message
	}

	fcmResult struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	}

	fcmResponse struct {
		Success int         `json:"success"`
		Failure int         `json:"failure"`
		Results []fcmResult `json:"results"`
	}
)

// FCMSender posts messages to the FCM HTTP endpoint.
type FCMSender struct {
	client *resty.Client
}

var _ notification.Sender = (*FCMSender)(nil)

func NewFCMSender(conf *core.Config) *FCMSender {
	client := resty.New().
		SetBaseURL(conf.Push.FCMEndpoint).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "key="+conf.Push.FCMKey).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	client.AddRetryCondition(retryCondition)
	return &FCMSender{client: client}
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests
}

// Send returns notification.ErrUnregistered when FCM no longer knows the token.
func (s *FCMSender) Send(ctx context.Context, token string, msg notification.Message) error {
	var res fcmResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(fcmRequest{To: token, Message: msg}).
		SetResult(&res).
		Post("")
	if err != nil {
		return errors.Wrap(err, "posting to fcm")
	}
	if resp.IsError() {
		return fmt.Errorf("fcm: status %d: %s", resp.StatusCode(), resp.String())
	}
	if res.Failure == 0 {
		return nil
	}
	for _, r := range res.Results {
		switch r.Error {
		case "":
		case "NotRegistered", "InvalidRegistration":
			return errors.Wrap(notification.ErrUnregistered, r.Error)
		default:
			return fmt.Errorf("fcm: %s", r.Error)
		}
	}
	return errors.New("fcm: delivery failed")
}
