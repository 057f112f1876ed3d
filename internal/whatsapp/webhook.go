package whatsapp

import (
	"encoding/json"
	"strconv"
	"time"
)

// InboundMessage is one text message lifted out of a webhook delivery.
type InboundMessage struct {
	From      string
	Name      string
	MessageID string
	Text      string
	Timestamp time.Time
}

// webhookPayload mirrors the Cloud API webhook notification envelope. Only
// the fields the assistant consumes are declared.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWebhook extracts text messages from a webhook notification body.
// Non-message changes (statuses, reactions, media) are skipped.
func ParseWebhook(body []byte) ([]InboundMessage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	var out []InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}

			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}

			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text.Body == "" {
					continue
				}
				inbound := InboundMessage{
					From:      msg.From,
					Name:      names[msg.From],
					MessageID: msg.ID,
					Text:      msg.Text.Body,
				}
				if secs, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
					inbound.Timestamp = time.Unix(secs, 0).UTC()
				}
				out = append(out, inbound)
			}
		}
	}
	return out, nil
}
