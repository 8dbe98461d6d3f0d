package transfer

import "errors"

var (
	// Validation errors
	ErrMissingSourceAccount  = errors.New("source account ID is required")
	ErrMissingDestAccount    = errors.New("destination account ID is required")
	ErrSameAccountTransfer   = errors.New("source and destination accounts cannot be the same")
	ErrInvalidTransferAcct   = errors.New("transfers move between cash, bank, wallet or credit card accounts")
	ErrMissingReceivedAmount = errors.New("received amount is required when currencies differ")
	ErrRateTooSmall          = errors.New("received amount is too small relative to the amount sent to record an exchange rate")
)
