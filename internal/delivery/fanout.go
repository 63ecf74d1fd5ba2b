package delivery

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/hub"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/log"
)

// Report counts the outcome of one fan-out.
type Report struct {
	Delivered int
	Offline   int
	Failed    int
}

// Fanout pushes committed messages to the live clients of their recipients.
type Fanout struct {
	hub *hub.Hub
}

func NewFanout(h *hub.Hub) *Fanout {
	return &Fanout{hub: h}
}

// Deliver serializes msg once and enqueues it on every registered, open
// recipient. Offline recipients are skipped; a failure for one recipient
// does not stop delivery to the others.
func (f *Fanout) Deliver(ctx context.Context, msg *domain.Message, recipients []int64) Report {
	l := log.Ctx(ctx)

	var report Report
	data, err := json.Marshal(msg.ToOut())
	if err != nil {
		l.Error().Err(err).Int64(log.FieldMessageID, msg.ID).Msg("failed to encode chat message")
		report.Failed = len(recipients)
		return report
	}

	for _, userID := range recipients {
		client, ok := f.hub.Lookup(userID)
		if !ok {
			report.Offline++
			continue
		}

		if err := client.Enqueue(data); err != nil {
			report.Failed++
			evt := l.Warn()
			if errors.Is(err, hub.ErrClientClosed) {
				evt = l.Debug()
			}
			evt.Err(err).
				Int64(log.FieldMessageID, msg.ID).
				Int64(log.FieldUserID, userID).
				Str(log.FieldClientID, client.ID).
				Msg("delivery failed")
			continue
		}
		report.Delivered++
	}

	l.Debug().
		Int64(log.FieldMessageID, msg.ID).
		Int(log.FieldDelivered, report.Delivered).
		Int(log.FieldOffline, report.Offline).
		Int(log.FieldFailed, report.Failed).
		Msg("message fanned out")

	return report
}
