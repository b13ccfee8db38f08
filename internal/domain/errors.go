package domain

import "errors"

var (
	// ErrEmptyPlayerName is returned when setup submits a blank name.
	ErrEmptyPlayerName = errors.New("player name must not be empty")
	// ErrPlayerNameTooLong is returned when the name exceeds the cap.
	ErrPlayerNameTooLong = errors.New("player name too long")
	// ErrInvalidDuration is returned for non-positive session durations.
	ErrInvalidDuration = errors.New("duration must be at least one minute")
	// ErrUnknownDecade is returned for a decade outside the enumeration.
	ErrUnknownDecade = errors.New("unknown decade")
	// ErrUnknownCategory is returned for a category outside the enumeration.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrSessionEnded is returned when acting on a session that has reached
	// its terminal state.
	ErrSessionEnded = errors.New("session has ended")
	// ErrNotPresenting is returned when an answer arrives while no question
	// is accepting input.
	ErrNotPresenting = errors.New("no question is currently accepting answers")
	// ErrUnknownOption is returned when a submitted answer is not one of the
	// current question's options.
	ErrUnknownOption = errors.New("option not part of the current question")
)
