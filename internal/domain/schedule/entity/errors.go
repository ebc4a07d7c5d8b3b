package entity

import "errors"

// Domain errors for scheduling
var (
	// Validation errors
	ErrEmptyPostID    = errors.New("post ID is required")
	ErrEmptyAccountID = errors.New("account ID is required")
	ErrInvalidSlot    = errors.New("slot weekday or time of day is out of range")
	ErrInvalidTime    = errors.New("scheduled time must be in the future")

	// Configuration errors
	ErrNoSlotsConfigured = errors.New("no enabled timeslots are configured")

	// Capacity errors
	ErrNoAvailableTimeslot = errors.New("no available timeslot within the scheduling horizon")
	ErrSlotOccupied        = errors.New("timeslot is already occupied by another post")

	// Precondition errors
	ErrPostNotFound         = errors.New("post not found")
	ErrSlotNotFound         = errors.New("preferred slot not found")
	ErrPostNotApproved      = errors.New("only approved posts can be scheduled")
	ErrAlreadyScheduled     = errors.New("post already has an active schedule assignment")
	ErrNotScheduled         = errors.New("post has no active schedule assignment")
	ErrPublishInProgress    = errors.New("publish is in progress for this post")
	ErrPlatformNotConnected = errors.New("platform account is not connected")

	// Execution errors
	ErrPublishFailed = errors.New("publishing to the platform failed")
)
