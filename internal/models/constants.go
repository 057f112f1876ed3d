package models

import "time"

const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentCancelled = "cancelled"
)

const (
	BookingActive    = "active"
	BookingCancelled = "cancelled"
)

const (
	PaymentProtocol  = "AP2"
	PaymentStandard  = "x402"
	PaymentCurrency  = "USDC"
	PaymentRecipient = "agent://booking-bot/payments"
)

const (
	StepCollecting       = "collecting"
	StepAwaitingApproval = "awaiting_approval"
)

const (
	// DefaultBookingDuration длительность бронирования по умолчанию
	DefaultBookingDuration = 2 * time.Hour

	// PaymentExpiry время жизни неподтвержденного платежа
	PaymentExpiry = 15 * time.Minute

	// DefaultSessionTTL время жизни состояния диалога в Redis
	DefaultSessionTTL = 24 * time.Hour

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = time.Minute

	// DefaultDepositPerGuest депозит за гостя в USDC
	DefaultDepositPerGuest = 10.0

	// SlotStep шаг сетки свободных слотов
	SlotStep = 30 * time.Minute
)

// UTCPlus4 is the fixed restaurant timezone offset (no DST).
var UTCPlus4 = time.FixedZone("UTC+4", 4*60*60)
