package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
)

// fcmBatchSize is the multicast limit of FCM.
const fcmBatchSize = 500

// PushMessage is what is sent to every device of one user.
type PushMessage struct {
	Message
	URL            string
	EventID        string
	NotificationID string
}

// SendResult summarizes a send to several devices.
type SendResult struct {
	ProviderID    string
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

type PushSender interface {
	Send(ctx context.Context, tokens []string, msg PushMessage) (SendResult, error)
}

// FCMMessenger is the part of the messaging client used by FCMSender.
type FCMMessenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMSender delivers push notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client FCMMessenger
}

func NewFCMSender(client FCMMessenger) *FCMSender {
	return &FCMSender{client: client}
}

func (f *FCMSender) Send(ctx context.Context, tokens []string, msg PushMessage) (SendResult, error) {
	if f.client == nil {
		return SendResult{}, errors.New("FCM client not initialized")
	}
	if len(tokens) == 0 {
		return SendResult{}, errors.New("no FCM tokens provided")
	}
	if len(tokens) == 1 {
		return f.sendSingle(ctx, tokens[0], msg)
	}
	return f.sendMulticast(ctx, tokens, msg)
}

func (f *FCMSender) sendSingle(ctx context.Context, token string, msg PushMessage) (SendResult, error) {
	m := &messaging.Message{
		Token:        token,
		Notification: notificationOf(msg),
		Data:         dataOf(msg),
		Android:      androidConfig(),
		APNS:         apnsConfig(msg),
	}

	id, err := f.client.Send(ctx, m)
	if err != nil {
		res := SendResult{FailureCount: 1}
		if messaging.IsUnregistered(err) {
			res.InvalidTokens = []string{token}
		}
		return res, fmt.Errorf("send FCM message: %w", err)
	}
	return SendResult{ProviderID: id, SuccessCount: 1}, nil
}

func (f *FCMSender) sendMulticast(ctx context.Context, tokens []string, msg PushMessage) (SendResult, error) {
	var res SendResult
	var batchErrs []error

	for i := 0; i < len(tokens); i += fcmBatchSize {
		end := min(i+fcmBatchSize, len(tokens))
		batch := tokens[i:end]

		resp, err := f.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       batch,
			Notification: notificationOf(msg),
			Data:         dataOf(msg),
			Android:      androidConfig(),
			APNS:         apnsConfig(msg),
		})
		if err != nil {
			res.FailureCount += len(batch)
			batchErrs = append(batchErrs, err)
			continue
		}

		res.SuccessCount += resp.SuccessCount
		res.FailureCount += resp.FailureCount
		for idx, r := range resp.Responses {
			if r.Success {
				if res.ProviderID == "" {
					res.ProviderID = r.MessageID
				}
				continue
			}
			if messaging.IsUnregistered(r.Error) {
				res.InvalidTokens = append(res.InvalidTokens, batch[idx])
			}
			logrus.WithField("token", redact(batch[idx])).WithError(r.Error).Debug("FCM delivery failed")
		}
	}

	if res.SuccessCount == 0 {
		batchErrs = append(batchErrs, fmt.Errorf("failed to send to %d/%d tokens", res.FailureCount, len(tokens)))
		return res, errors.Join(batchErrs...)
	}
	return res, nil
}

func notificationOf(msg PushMessage) *messaging.Notification {
	return &messaging.Notification{Title: msg.Title, Body: msg.Body}
}

func dataOf(msg PushMessage) map[string]string {
	return map[string]string{
		"url":            msg.URL,
		"eventId":        msg.EventID,
		"notificationId": msg.NotificationID,
	}
}

func androidConfig() *messaging.AndroidConfig {
	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			ChannelID:    "captures",
			Priority:     messaging.PriorityHigh,
			DefaultSound: true,
		},
	}
}

func apnsConfig(msg PushMessage) *messaging.APNSConfig {
	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Alert: &messaging.ApsAlert{
					Title:    msg.Title,
					SubTitle: msg.Subtitle,
					Body:     msg.Body,
				},
				Sound: "default",
			},
		},
	}
}

func redact(token string) string {
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:12] + "..."
}
