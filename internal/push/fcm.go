package push

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"
)

// maxMulticastTokens is the FCM limit per multicast request.
const maxMulticastTokens = 500

// multicaster is the part of the FCM client the sender uses.
type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCM sends push notifications via Firebase Cloud Messaging.
type FCM struct {
	client multicaster
	logger *slog.Logger
}

// NewFCM wraps a messaging client.
func NewFCM(client *messaging.Client, logger *slog.Logger) *FCM {
	return &FCM{client: client, logger: logger}
}

// Send implements Gateway. Token lists above the multicast limit are split
// into consecutive requests; any request failure fails the whole send.
func (s *FCM) Send(ctx context.Context, tokens []string, n Notification) (*Result, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no tokens to send to")
	}

	res := &Result{}
	for start := 0; start < len(tokens); start += maxMulticastTokens {
		end := min(start+maxMulticastTokens, len(tokens))
		chunk := tokens[start:end]

		resp, err := s.client.SendEachForMulticast(ctx, buildMessage(chunk, n))
		if err != nil {
			return nil, fmt.Errorf("fcm multicast (%d tokens): %w", len(chunk), err)
		}

		res.Success += resp.SuccessCount
		res.Failure += resp.FailureCount
		for i, r := range resp.Responses {
			if r == nil || r.Success {
				continue
			}
			if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
				res.Unregistered = append(res.Unregistered, chunk[i])
			}
		}
	}

	if res.Failure > 0 {
		s.logger.Warn("FCM partial failure",
			"success", res.Success, "failure", res.Failure,
			"unregistered", len(res.Unregistered))
	}
	return res, nil
}

func buildMessage(tokens []string, n Notification) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: n.Title, Body: n.Body},
		Data:         n.Data,
	}
	if n.Badge > 0 || n.Sound != "" {
		aps := &messaging.Aps{Sound: n.Sound}
		if n.Badge > 0 {
			badge := n.Badge
			aps.Badge = &badge
		}
		msg.APNS = &messaging.APNSConfig{Payload: &messaging.APNSPayload{Aps: aps}}
	}
	return msg
}
