package conversation

import (
	"fmt"
	"strings"
	"time"

	"bellavita/internal/guard"
	"bellavita/internal/models"
)

const (
	msgHelp = "Welcome to La Bella Vita! I can book you a table. " +
		"Tell me the date, time, party size and your name, for example: " +
		"\"table for 4 tomorrow at 19:00, my name is Anna\"."
	msgUnrecognized     = "Sorry, I didn't catch that. Say \"help\" to see what I can do."
	msgRateLimited      = "You're sending messages too quickly. Please wait a moment."
	msgInternalError    = "Something went wrong on our side. Please try again in a minute."
	msgNoPendingBooking = "I don't see a booking in progress for you. Want to make one?"
	msgNothingToCancel  = "There's no active booking to cancel."
	msgCancelled        = "Your booking has been cancelled. Hope to see you another time!"
	msgCancelFailed     = "I couldn't cancel the booking right now. Please try again shortly."
)

func renderMissing(missing []string) string {
	return fmt.Sprintf("Almost there! I still need: %s.", strings.Join(missing, ", "))
}

func renderDeclined(outcome *guard.Outcome) string {
	var b strings.Builder
	b.WriteString("Unfortunately that time is not available.")
	if outcome.Reason != "" && len(outcome.Alternatives) == 0 {
		b.WriteString(" " + capitalize(outcome.Reason) + ".")
	}
	if len(outcome.Alternatives) > 0 {
		b.WriteString(" Free nearby slots:")
		for i, alt := range outcome.Alternatives {
			if i >= 3 {
				break
			}
			b.WriteString(fmt.Sprintf("\n• %s", alt.In(models.UTCPlus4).Format("Mon 2 Jan 15:04")))
		}
		b.WriteString("\nWould one of these work?")
	}
	return b.String()
}

func renderFailed(outcome *guard.Outcome) string {
	if outcome.Reason != "" {
		return fmt.Sprintf("I couldn't complete the booking: %s.", outcome.Reason)
	}
	return "I couldn't complete the booking. Please try again."
}

func renderPending(outcome *guard.Outcome) string {
	event := outcome.Event
	payment := outcome.Payment

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Your table is reserved! %s on %s.\n",
		event.Summary,
		event.Start.In(models.UTCPlus4).Format("Mon 2 Jan at 15:04")))
	b.WriteString(fmt.Sprintf("To confirm, please pay the %.0f %s deposit within %d minutes:\n%s",
		payment.Amount,
		payment.Currency,
		int(time.Until(payment.ExpiresAt).Round(time.Minute).Minutes()),
		payment.PaymentURL))
	return b.String()
}

func renderApproval(outcome *guard.Outcome) string {
	switch outcome.State {
	case guard.StateConfirmed:
		return fmt.Sprintf("Payment received, your booking is fully confirmed! Transaction: %s. See you soon!",
			outcome.Payment.TxHash)
	case guard.StateDeclined:
		return "The payment was cancelled, so the booking is not confirmed. Want to start over?"
	default:
		return fmt.Sprintf("Your deposit of %.0f %s is still awaiting approval. I'll confirm as soon as it lands.",
			outcome.Payment.Amount, outcome.Payment.Currency)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
