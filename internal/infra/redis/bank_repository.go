package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"quizcast/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// SetLoader fetches question sets from a backing store (e.g., Postgres).
type SetLoader interface {
	LoadSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// BankRepository caches question sets in Redis (one hash per set, question
// index -> payload) and falls back to the loader on cache miss.
// Stored as: HSET bank:{setID}:questions {index} {payload}
type BankRepository struct {
	client *redis.Client
	loader SetLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewBankRepository(client *redis.Client, loader SetLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BankRepository) GetSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	key := r.questionsKey(setID)

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return buildSetFromCache(setID, fields), nil
	}

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return buildSetFromCache(setID, fields), nil
		}

		set, err := r.loader.LoadSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for i, question := range set.Questions {
			pipe.HSet(ctx, key, strconv.Itoa(i), string(question))
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (r *BankRepository) questionsKey(setID string) string {
	return "bank:" + setID + ":questions"
}

func buildSetFromCache(setID string, fields map[string]string) domain.QuestionSet {
	indexes := make([]int, 0, len(fields))
	for field := range fields {
		if i, err := strconv.Atoi(field); err == nil {
			indexes = append(indexes, i)
		}
	}
	sort.Ints(indexes)

	questions := make([]json.RawMessage, 0, len(indexes))
	for _, i := range indexes {
		questions = append(questions, json.RawMessage(fields[strconv.Itoa(i)]))
	}
	return domain.QuestionSet{ID: setID, Questions: questions}
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
