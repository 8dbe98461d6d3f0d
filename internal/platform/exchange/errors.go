package exchange

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration errors. These are deployment bugs and are not retried.
var (
	ErrFetcherNotConfigured    = errors.New("no fetcher configured for source")
	ErrInvalidFetcher          = errors.New("configured component is not a fetcher")
	ErrCalculatorNotConfigured = errors.New("no rate calculator configured for pair")
	ErrInvalidCalculator       = errors.New("configured component is not a rate calculator")
)

// Data errors
var (
	ErrSourceNotFound        = errors.New("exchange source not found")
	ErrPairNotFound          = errors.New("currency pair not found")
	ErrRateNotFound          = errors.New("exchange rate not found")
	ErrUnsupportedPair       = errors.New("currency pair is not supported by source")
	ErrMissingRequestedPairs = errors.New("fetcher did not return every requested pair")
	ErrInvalidPairKey        = errors.New("invalid currency pair key")
	ErrNoQuotes              = errors.New("no quotes to calculate a rate from")
	ErrInvalidRate           = errors.New("exchange rate must be positive")
)

// FetchError is an upstream failure: transport error, non-2xx status or a
// malformed payload. Retryable failures are left to the next scheduled run.
type FetchError struct {
	Source    string
	Retryable bool
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps an upstream failure as retryable
func NewFetchError(source string, err error) *FetchError {
	return &FetchError{Source: source, Retryable: true, Err: err}
}

// IsRetryable reports whether err is worth retrying on the next run
func IsRetryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable
}

func missingPairsError(keys []string) error {
	return fmt.Errorf("%w: %s", ErrMissingRequestedPairs, strings.Join(keys, ", "))
}
