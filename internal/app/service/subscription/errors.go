package subscription

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrSubscriptionExists is returned when a user who already holds an
	// effective subscription tries to start another one.
	ErrSubscriptionExists = errors.New("user already has an effective subscription")

	// ErrInvalidTransition is returned for lifecycle moves the state machine
	// does not allow, including any move out of a terminal status.
	ErrInvalidTransition = errors.New("invalid subscription state transition")

	ErrPlanNotFound = errors.New("plan not found")

	ErrPlanInactive = errors.New("plan is not active")
)
