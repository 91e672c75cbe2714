// Package session owns the authoritative in-memory quiz state: the
// participant registry, the current question window, the per-question answer
// set, and the cached leaderboard.
package session

import (
	"encoding/json"
	"sort"
	"sync"

	"quizcast/internal/domain"
)

// Session is the single live quiz state for one server process. All mutation
// goes through the event router, which applies events one at a time; the
// mutex additionally keeps read snapshots safe for callers outside that loop.
type Session struct {
	mu           sync.RWMutex
	participants []*domain.Participant
	byID         map[string]*domain.Participant

	currentQuestion json.RawMessage
	questionIndex   int
	quizStarted     bool

	answers     map[string]domain.AnswerRecord
	leaderboard []*domain.Participant
}

func New() *Session {
	return &Session{
		byID:    make(map[string]*domain.Participant),
		answers: make(map[string]domain.AnswerRecord),
	}
}

// Register adds a participant with a zero score. Participants are never
// removed afterwards, only marked disconnected.
func (s *Session) Register(id, name string) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; ok {
		return domain.Participant{}, domain.ErrAlreadyRegistered
	}
	p := &domain.Participant{ID: id, Name: name, Score: 0, Connected: true}
	s.participants = append(s.participants, p)
	s.byID[id] = p
	// New joiners show up on the board immediately, at the tail of their
	// score group, without waiting for the next scoring event.
	s.leaderboard = append(s.leaderboard, p)
	return *p, nil
}

// BeginQuestion replaces the question window and clears the answer set. It is
// idempotent and does not verify index monotonicity; the examiner is trusted.
func (s *Session) BeginQuestion(question json.RawMessage, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentQuestion = question
	s.questionIndex = index
	s.answers = make(map[string]domain.AnswerRecord)
}

// Start marks the quiz as started and opens the first question window.
func (s *Session) Start(question json.RawMessage, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentQuestion = question
	s.questionIndex = index
	s.answers = make(map[string]domain.AnswerRecord)
	s.quizStarted = true
}

// RecordAnswer stores at most one answer per participant for the current
// question. On acceptance the score grows by the declared points when the
// record declares itself correct, and the leaderboard is recomputed from the
// connected participants. Unknown ids and repeat submissions leave all state
// untouched.
func (s *Session) RecordAnswer(id string, rec domain.AnswerRecord) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return domain.AnswerResult{}, domain.ErrUnknownParticipant
	}
	if _, dup := s.answers[id]; dup {
		return domain.AnswerResult{}, domain.ErrDuplicateAnswer
	}

	s.answers[id] = rec
	if rec.Correct {
		p.Score += rec.Points
	}
	s.recomputeLeaderboardLocked()

	return domain.AnswerResult{Correct: rec.Correct, Score: p.Score, Points: rec.Points}, nil
}

// Disconnect marks the participant as gone without deleting their record, so
// their score stays attributed. Unknown ids are a no-op.
func (s *Session) Disconnect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.byID[id]; ok {
		p.Connected = false
	}
}

// recomputeLeaderboardLocked rebuilds the cache from the connected subset,
// score descending. The stable sort keeps join order on ties.
func (s *Session) recomputeLeaderboardLocked() {
	board := make([]*domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		if p.Connected {
			board = append(board, p)
		}
	}
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score > board[j].Score
	})
	s.leaderboard = board
}

// Leaderboard returns a copy of the cached ordering as of the last scoring
// event (or of joins, in between).
func (s *Session) Leaderboard() []domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Participant, len(s.leaderboard))
	for i, p := range s.leaderboard {
		out[i] = *p
	}
	return out
}

// Participants returns a copy of the registry in join order, disconnected
// members included.
func (s *Session) Participants() []domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Participant, len(s.participants))
	for i, p := range s.participants {
		out[i] = *p
	}
	return out
}

// CurrentQuestion returns the active frame, or ok=false when no question has
// been opened yet.
func (s *Session) CurrentQuestion() (domain.QuestionFrame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentQuestion == nil {
		return domain.QuestionFrame{}, false
	}
	return domain.QuestionFrame{Question: s.currentQuestion, QuestionIndex: s.questionIndex}, true
}

// Started reports whether start-quiz has been applied.
func (s *Session) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quizStarted
}

// HasAnswered reports whether the participant already submitted for the
// current question.
func (s *Session) HasAnswered(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.answers[id]
	return ok
}
