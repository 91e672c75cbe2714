package domain

import "encoding/json"

// Inbound event names. Connect and Disconnect are synthesized by the
// transport; the rest arrive from clients.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventJoin         = "join-quiz"
	EventStartQuiz    = "start-quiz"
	EventNextQuestion = "next-question"
	EventSubmitAnswer = "submit-answer"
	EventShowResults  = "show-results"
	EventQuizEnded    = "quiz-ended"
)

// Outbound event names.
const (
	EventJoinedQuiz        = "joined-quiz"
	EventStudentJoined     = "student-joined"
	EventQuizStarted       = "quiz-started"
	EventAnswerResult      = "answer-result"
	EventLeaderboardUpdate = "leaderboard-update"
)

// InboundEvent is one message from one connection, as handed to the router.
type InboundEvent struct {
	ConnID  string
	Type    string
	Payload json.RawMessage
}
