package domain

import "errors"

var (
	// ErrAlreadyRegistered is returned when a connection id is registered twice.
	ErrAlreadyRegistered = errors.New("participant already registered")
	// ErrUnknownParticipant is returned when an event references a connection id
	// that never joined.
	ErrUnknownParticipant = errors.New("unknown participant")
	// ErrDuplicateAnswer is returned when a participant submits twice for the
	// same question.
	ErrDuplicateAnswer = errors.New("answer already submitted for this question")
	// ErrSetNotFound indicates the question set could not be loaded.
	ErrSetNotFound = errors.New("question set not found")
	// ErrQuestionOutOfRange indicates a question index past the end of a set.
	ErrQuestionOutOfRange = errors.New("question index out of range")
)
