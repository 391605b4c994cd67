package notification

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	SourceAIPipeline = "ai_pipeline"

	MethodRawText = "rawText"
	MethodURL     = "url"
	MethodImage   = "image"
)

// Dispatcher sends the capture notification to every registered device of a
// user. It reports the outcome in the returned Dispatch and the log; it never
// fails its caller.
type Dispatcher struct {
	repo   Repository
	sender PushSender
	appURL string
}

func NewDispatcher(repo Repository, sender PushSender, appURL string) *Dispatcher {
	return &Dispatcher{
		repo:   repo,
		sender: sender,
		appURL: strings.TrimRight(appURL, "/"),
	}
}

func NewNotificationID() string {
	return "not_" + uuid.NewString()
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Dispatch {
	out := Dispatch{
		NotificationID: NewNotificationID(),
		UserID:         req.UserID,
		URL:            d.appURL + "/event/" + req.EventID,
		EventID:        req.EventID,
		Source:         req.Source,
		Method:         req.Method,
	}
	log := logrus.WithFields(logrus.Fields{
		"user_id":         req.UserID,
		"notification_id": out.NotificationID,
		"event_id":        req.EventID,
		"source":          req.Source,
		"method":          req.Method,
	})

	count := req.Count
	if count < 1 {
		count = 1
	}
	msg := Copy(req.EventName, count)
	out.Title, out.Subtitle, out.Body = msg.Title, msg.Subtitle, msg.Body

	tokens, err := d.repo.ActiveTokens(ctx, req.UserID)
	if err != nil {
		out.Error = "load push tokens: " + err.Error()
		log.WithError(err).Error("notification not sent")
		return out
	}
	if len(tokens) == 0 {
		out.Error = "no registered devices"
		log.Info("notification skipped, no registered devices")
		return out
	}

	res, err := d.sender.Send(ctx, tokens, PushMessage{
		Message:        msg,
		URL:            out.URL,
		EventID:        req.EventID,
		NotificationID: out.NotificationID,
	})
	out.ProviderID = res.ProviderID

	if len(res.InvalidTokens) > 0 {
		if derr := d.repo.DeactivateTokens(ctx, req.UserID, res.InvalidTokens); derr != nil {
			log.WithError(derr).Warn("could not deactivate unregistered tokens")
		} else {
			log.WithField("tokens", len(res.InvalidTokens)).Info("deactivated unregistered push tokens")
		}
	}

	if err != nil {
		out.Error = err.Error()
		log.WithError(err).WithField("failures", res.FailureCount).Error("notification send failed")
		return out
	}

	out.Success = true
	if terr := d.repo.TouchTokens(ctx, req.UserID, tokens); terr != nil {
		log.WithError(terr).Debug("could not update token usage")
	}
	log.WithFields(logrus.Fields{
		"provider_id": res.ProviderID,
		"delivered":   res.SuccessCount,
		"failed":      res.FailureCount,
		"count":       count,
	}).Info("notification sent")
	return out
}
