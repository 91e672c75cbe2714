package domain

import "encoding/json"

// Participant is a connected (or previously connected) quiz member. The ID is
// the connection identifier issued at upgrade time; a reconnect produces a new
// Participant with a fresh ID and a zero score.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// QuestionFrame carries the examiner-supplied question payload. The server
// stores and rebroadcasts the payload verbatim; it never inspects it.
type QuestionFrame struct {
	Question      json.RawMessage `json:"question"`
	QuestionIndex int             `json:"questionIndex"`
}

// AnswerRecord is one participant's submission for the current question.
// Correctness and points are declared by the client; the server derives the
// score from them without re-checking the answer itself.
type AnswerRecord struct {
	Answer  json.RawMessage `json:"answer"`
	Correct bool            `json:"correct"`
	Points  int             `json:"points"`
}

// AnswerResult is sent back to the submitting participant only.
type AnswerResult struct {
	Correct bool `json:"correct"`
	Score   int  `json:"score"`
	Points  int  `json:"points"`
}

// QuestionSet is a prepared sequence of question payloads an examiner can
// drive a quiz from instead of inlining every frame. Payloads stay opaque
// blobs here too.
type QuestionSet struct {
	ID        string            `json:"id"`
	Questions []json.RawMessage `json:"questions"`
}
