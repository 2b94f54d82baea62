package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"textline/internal/config"
	"textline/internal/extract"
	"textline/internal/logging"
	"textline/internal/phone"
	"textline/internal/sms"
)

// InboundService turns a verified inbound SMS into a state change and a
// reply. It runs only after the webhook signature has been verified; nothing
// here re-checks that.
type InboundService struct {
	subs      *SubscriberService
	extractor extract.Extractor
	sender    sms.Sender
	runtime   *config.Manager
}

func NewInboundService(subs *SubscriberService, extractor extract.Extractor, sender sms.Sender, runtime *config.Manager) *InboundService {
	return &InboundService{subs: subs, extractor: extractor, sender: sender, runtime: runtime}
}

// HandleMessage processes one inbound message and returns the reply text.
// from is the sender's number as reported by the provider.
func (s *InboundService) HandleMessage(ctx context.Context, from, body string) (string, error) {
	replies := s.runtime.Get().Replies

	normFrom, fromErr := phone.NormalizeE164(from)
	if fromErr != nil {
		normFrom = ""
	}

	switch keyword(body) {
	case "STOP", "UNSUBSCRIBE":
		return s.handleStop(ctx, normFrom, replies)
	case "START", "SUBSCRIBE", "UNSTOP":
		return s.handleStart(ctx, normFrom, replies)
	case "HELP", "INFO":
		return replies.Help, nil
	default:
		return s.handleJoin(ctx, normFrom, body, replies)
	}
}

func keyword(body string) string {
	return strings.ToUpper(strings.TrimSpace(body))
}

// handleStop deactivates the matching subscriber. Unknown senders get the
// same acknowledgment as known ones so the reply does not reveal list
// membership.
func (s *InboundService) handleStop(ctx context.Context, normFrom string, replies config.RepliesConfig) (string, error) {
	match, err := s.subs.MatchByPhone(ctx, normFrom)
	if err != nil {
		return "", err
	}
	if match != nil && match.Active {
		if err := s.subs.SetActive(ctx, match.ID, false); err != nil {
			return "", err
		}
		logging.Audit(ctx, "subscriber_stop", "ok", slog.String("subscriber_id", match.ID.String()))
	} else {
		logging.Audit(ctx, "subscriber_stop", "no_match")
	}
	return replies.StopAck, nil
}

func (s *InboundService) handleStart(ctx context.Context, normFrom string, replies config.RepliesConfig) (string, error) {
	match, err := s.subs.MatchByPhone(ctx, normFrom)
	if err != nil {
		return "", err
	}
	if match == nil {
		return replies.StartPrompt, nil
	}
	if !match.Active {
		if err := s.subs.SetActive(ctx, match.ID, true); err != nil {
			return "", err
		}
		logging.Audit(ctx, "subscriber_start", "ok", slog.String("subscriber_id", match.ID.String()))
	}
	return replies.ReactivateAck, nil
}

// handleJoin runs free text through the extraction oracle and upserts a
// subscriber from the result. Oracle output is untrusted: the phone goes
// through the same normalization gate as typed input, and a missing name is
// bounced back to the sender rather than guessed.
func (s *InboundService) handleJoin(ctx context.Context, normFrom, body string, replies config.RepliesConfig) (string, error) {
	var fields extract.Fields
	if s.extractor != nil {
		var err error
		fields, err = s.extractor.Extract(ctx, body)
		if err != nil {
			// Best-effort collaborator: fall back to what the webhook itself
			// tells us rather than failing the message.
			slog.Warn("extraction failed", "error", err)
			fields = extract.Fields{}
		}
	}

	name := strings.TrimSpace(fields.Name)
	if name == "" {
		return replies.NeedName, nil
	}

	target, err := phone.NormalizeE164(fields.Phone)
	if err != nil {
		target = normFrom
	}
	if target == "" {
		return replies.NeedPhone, nil
	}

	match, err := s.subs.MatchByPhone(ctx, target)
	if err != nil {
		return "", err
	}

	howMet := strings.TrimSpace(fields.Context)
	var sub Subscriber
	if match != nil {
		updated, err := s.subs.Update(ctx, match.ID, &name, &target, optional(howMet))
		if err != nil {
			return "", err
		}
		if !updated.Active {
			if err := s.subs.SetActive(ctx, updated.ID, true); err != nil {
				return "", err
			}
		}
		sub = updated
	} else {
		created, err := s.subs.Create(ctx, name, target, howMet)
		if err != nil {
			return "", err
		}
		sub = created
	}
	logging.Audit(ctx, "subscriber_join", "ok", slog.String("subscriber_id", sub.ID.String()))

	ack := replies.SubscribeAck
	if strings.Contains(ack, "%s") {
		ack = fmt.Sprintf(ack, sub.Name)
	}
	if s.sender != nil {
		if err := s.sender.Send(ctx, sub.Phone, ack); err != nil {
			// The reply still goes back inline on the webhook response.
			slog.Warn("confirmation send failed", "error", err)
		}
	}
	return ack, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
