package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound              = errors.New("entity not found")
	ErrAlreadyExists         = errors.New("entity already exists")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrSignatureInvalid      = errors.New("event signature invalid")
	ErrMalformedPayload      = errors.New("malformed event payload")
	ErrEventAlreadyProcessed = errors.New("event already processed")
	ErrGatewayFailure        = errors.New("payment gateway failure")
	ErrOperationFailed       = errors.New("storage operation failed")
	ErrInvalidExecContext    = errors.New("invalid executor context")
	ErrReadDatabaseRow       = errors.New("failed to read database row")
)
