package errors

import "errors"

var (
	ErrInvalidInput         = errors.New("party input is invalid")
	ErrPartyNotFound        = errors.New("party not found")
	ErrPlayerNotFound       = errors.New("player not found in this party")
	ErrPartyClosed          = errors.New("party has already ended")
	ErrSettlementInProgress = errors.New("settlement is already in progress")
	ErrSettlementNotFound   = errors.New("settlement not computed yet")
	ErrHostTokenMismatch    = errors.New("host token invalid")
	ErrCodeConflict         = errors.New("party code already taken")
	ErrOutboxNotFound       = errors.New("outbox message not found")
	ErrCodeExhausted        = errors.New("could not allocate a unique party code")
)
