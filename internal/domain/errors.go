package domain

import "errors"

// ErrValidation indicates that a request failed validation before any state was touched.
var ErrValidation = errors.New("validation error")

// ErrAmbiguousArgument indicates that both or neither of two mutually exclusive arguments were given.
var ErrAmbiguousArgument = errors.New("ambiguous argument")

// ErrDataUnavailable indicates that a price or exchange rate could not be obtained.
var ErrDataUnavailable = errors.New("market data unavailable")

// ErrInsufficientFunds indicates that settlement could not source enough cash in some currency.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")
