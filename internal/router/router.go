// Package router maps inbound events to session mutations and outbound
// emissions. Events are applied strictly one at a time, so multi-step
// transitions like "check not answered, then insert" never interleave.
package router

import (
	"context"
	"encoding/json"
	"log"

	"quizcast/internal/domain"
	"quizcast/internal/gateway"
	"quizcast/internal/session"
)

// QuestionBank resolves prepared question sets referenced by examiners.
type QuestionBank interface {
	GetSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// ScoreboardPublisher mirrors emitted leaderboards to an external sink.
// Implementations must be best-effort; the router ignores their failures.
type ScoreboardPublisher interface {
	Publish(ctx context.Context, board []domain.Participant)
}

// Router drives the session from inbound events.
//
// Any connection may emit examiner events (start-quiz, next-question,
// show-results, quiz-ended); the examiner/student split is a client-side
// convention, kept as-is from the original behavior. The only server-side
// integrity is answer deduplication and score derivation from the declared
// correctness flag.
type Router struct {
	session    *session.Session
	gw         gateway.Gateway
	bank       QuestionBank
	scoreboard ScoreboardPublisher
	events     chan domain.InboundEvent
}

func New(s *session.Session, gw gateway.Gateway, opts ...Option) *Router {
	r := &Router{
		session: s,
		gw:      gw,
		events:  make(chan domain.InboundEvent, 64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type Option func(*Router)

// WithQuestionBank lets start-quiz/next-question reference a setId instead of
// an inline question payload.
func WithQuestionBank(bank QuestionBank) Option {
	return func(r *Router) { r.bank = bank }
}

// WithScoreboardPublisher mirrors every leaderboard broadcast to the sink.
func WithScoreboardPublisher(pub ScoreboardPublisher) Option {
	return func(r *Router) { r.scoreboard = pub }
}

// Dispatch queues one inbound event for processing. Safe for concurrent use
// by many connection read loops.
func (r *Router) Dispatch(ev domain.InboundEvent) {
	r.events <- ev
}

// Run consumes the event queue until ctx is done. It is the single writer to
// the session; run it in exactly one goroutine.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.HandleEvent(ctx, ev)
		}
	}
}

type joinPayload struct {
	Name string `json:"name"`
}

type questionPayload struct {
	Question      json.RawMessage `json:"question"`
	SetID         string          `json:"setId"`
	QuestionIndex int             `json:"questionIndex"`
}

// HandleEvent applies one event to completion: validate, mutate, emit.
// Callers other than Run must not invoke it concurrently; Run provides the
// serialization the session's compound mutations rely on.
func (r *Router) HandleEvent(ctx context.Context, ev domain.InboundEvent) {
	switch ev.Type {
	case domain.EventConnect:
		log.Printf("client connected: %s", ev.ConnID)
	case domain.EventJoin:
		r.handleJoin(ev)
	case domain.EventStartQuiz:
		r.handleQuestion(ctx, ev, true)
	case domain.EventNextQuestion:
		r.handleQuestion(ctx, ev, false)
	case domain.EventSubmitAnswer:
		r.handleSubmitAnswer(ctx, ev)
	case domain.EventShowResults:
		r.broadcastPhase(ctx, domain.EventShowResults)
	case domain.EventQuizEnded:
		log.Printf("quiz ended")
		r.broadcastPhase(ctx, domain.EventQuizEnded)
	case domain.EventDisconnect:
		r.handleDisconnect(ev)
	default:
		log.Printf("unsupported event %q from %s", ev.Type, ev.ConnID)
	}
}

func (r *Router) handleJoin(ev domain.InboundEvent) {
	var payload joinPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		log.Printf("invalid join payload from %s: %v", ev.ConnID, err)
		return
	}

	p, err := r.session.Register(ev.ConnID, payload.Name)
	if err != nil {
		log.Printf("join rejected for %s: %v", ev.ConnID, err)
		return
	}

	r.gw.SendTo(ev.ConnID, domain.EventJoinedQuiz, p)
	r.gw.BroadcastAll(domain.EventStudentJoined, p)
	log.Printf("student %s joined the quiz", p.Name)
}

// handleQuestion serves both start-quiz and next-question; start additionally
// flips the started flag. Neither checks who sent it or whether the index
// moves forward, matching the trusted-examiner model.
func (r *Router) handleQuestion(ctx context.Context, ev domain.InboundEvent, start bool) {
	var payload questionPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		log.Printf("invalid question payload from %s: %v", ev.ConnID, err)
		return
	}

	question := payload.Question
	if len(question) == 0 {
		resolved, err := r.resolveFromBank(ctx, payload.SetID, payload.QuestionIndex)
		if err != nil {
			log.Printf("question lookup failed (set=%s index=%d): %v", payload.SetID, payload.QuestionIndex, err)
			return
		}
		question = resolved
	}

	frame := domain.QuestionFrame{Question: question, QuestionIndex: payload.QuestionIndex}
	if start {
		r.session.Start(frame.Question, frame.QuestionIndex)
		r.gw.BroadcastAll(domain.EventQuizStarted, frame)
		log.Printf("quiz started at question %d", frame.QuestionIndex)
	} else {
		r.session.BeginQuestion(frame.Question, frame.QuestionIndex)
		r.gw.BroadcastAll(domain.EventNextQuestion, frame)
		log.Printf("next question: %d", frame.QuestionIndex)
	}
}

func (r *Router) handleSubmitAnswer(ctx context.Context, ev domain.InboundEvent) {
	var rec domain.AnswerRecord
	if err := json.Unmarshal(ev.Payload, &rec); err != nil {
		log.Printf("invalid answer payload from %s: %v", ev.ConnID, err)
		return
	}

	result, err := r.session.RecordAnswer(ev.ConnID, rec)
	if err != nil {
		// Unknown participants and repeat submissions drop silently: no state
		// change, no outbound traffic.
		return
	}

	r.gw.SendTo(ev.ConnID, domain.EventAnswerResult, result)
	r.emitLeaderboard(ctx)
}

func (r *Router) broadcastPhase(ctx context.Context, event string) {
	r.gw.BroadcastAll(event, struct{}{})
	r.emitLeaderboard(ctx)
}

func (r *Router) handleDisconnect(ev domain.InboundEvent) {
	r.session.Disconnect(ev.ConnID)
	log.Printf("client disconnected: %s", ev.ConnID)
}

func (r *Router) emitLeaderboard(ctx context.Context) {
	board := r.session.Leaderboard()
	r.gw.BroadcastAll(domain.EventLeaderboardUpdate, board)
	if r.scoreboard != nil {
		r.scoreboard.Publish(ctx, board)
	}
}

func (r *Router) resolveFromBank(ctx context.Context, setID string, index int) (json.RawMessage, error) {
	if r.bank == nil || setID == "" {
		return nil, domain.ErrSetNotFound
	}
	set, err := r.bank.GetSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(set.Questions) {
		return nil, domain.ErrQuestionOutOfRange
	}
	return set.Questions[index], nil
}
