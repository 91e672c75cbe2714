package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"quizcast/internal/domain"
	"github.com/redis/go-redis/v9"
)

const scoreboardKey = "quiz:scoreboard"

// ScoreboardPublisher mirrors the latest emitted leaderboard to a TTL'd Redis
// key so external dashboards can read it. Writes are best-effort: a failed
// SET is logged and forgotten, and nothing is ever read back into the
// session.
type ScoreboardPublisher struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time
}

type scoreboardSnapshot struct {
	Entries   []domain.Participant `json:"entries"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func NewScoreboardPublisher(client *redis.Client, ttl time.Duration) *ScoreboardPublisher {
	return &ScoreboardPublisher{client: client, ttl: ttl, clock: time.Now}
}

func (p *ScoreboardPublisher) Publish(ctx context.Context, board []domain.Participant) {
	data, err := json.Marshal(scoreboardSnapshot{Entries: board, UpdatedAt: p.clock()})
	if err != nil {
		log.Printf("marshal scoreboard: %v", err)
		return
	}
	if err := p.client.Set(ctx, scoreboardKey, data, p.ttl).Err(); err != nil {
		log.Printf("publish scoreboard: %v", err)
	}
}
