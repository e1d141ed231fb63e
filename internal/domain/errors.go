package domain

import (
	"errors"
	"strconv"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a transport failure talking to the exchange
type NetworkError struct {
	Op        string // Operation that failed (e.g., "place", "cancel", "dial")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ExchangeError is a business-level rejection (HTTP 200, non-zero retCode).
type ExchangeError struct {
	Op      string
	RetCode int
	RetMsg  string
}

func (e *ExchangeError) Error() string {
	return e.Op + ": exchange rejected: " + strconv.Itoa(e.RetCode) + " " + e.RetMsg
}

func (e *ExchangeError) IsRetriable() bool {
	return false
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrConnectionFailed is returned when websocket connection fails. It's usually retriable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidSymbol is returned when the instrument is unknown to the exchange.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrMissingInstrument means tick size or quantity step is unavailable; quoting must not start.
	ErrMissingInstrument = errors.New("instrument metadata missing")

	// ErrNoOrderID is returned when a placement was acknowledged without an order id.
	ErrNoOrderID = errors.New("placement returned no order id")
)
