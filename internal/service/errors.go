package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrUpstream   = errors.New("upstream provider error")
	ErrConflict   = errors.New("conflict")

	ErrNoMarketData         = fmt.Errorf("%w: no market data found for this topic", ErrNotFound)
	ErrGenerationInProgress = fmt.Errorf("%w: generation already in progress", ErrConflict)
	ErrENSDisabled          = errors.New("ens registration is not configured")
)

// ValidationError carries a message that is safe to return to API callers.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StageError marks the pipeline stage that failed. Every stage talks to an
// external provider, so it also matches ErrUpstream.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool { return target == ErrUpstream }

// ENSRegistrationError is returned when the agent row was written but the
// subdomain registration did not complete. The row keeps its wallet and has
// NULL ENS fields.
type ENSRegistrationError struct {
	AgentID string
	Err     error
}

func (e *ENSRegistrationError) Error() string {
	return fmt.Sprintf("ENS registration failed for agent %s: %v", e.AgentID, e.Err)
}

func (e *ENSRegistrationError) Unwrap() error { return e.Err }

func (e *ENSRegistrationError) Is(target error) bool { return target == ErrUpstream }
