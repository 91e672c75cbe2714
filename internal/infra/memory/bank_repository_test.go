package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"quizcast/internal/domain"
)

func TestBankRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		SetLoader: NewStaticSetLoader(map[string]domain.QuestionSet{
			"set-1": sampleSet(),
		}),
	}
	repo := NewBankRepository(loader, time.Minute)

	if _, err := repo.GetSet(context.Background(), "set-1"); err != nil {
		t.Fatalf("get set: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetSet(context.Background(), "set-1"); err != nil {
		t.Fatalf("get set 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestStaticLoaderMiss(t *testing.T) {
	repo := NewBankRepository(NewStaticSetLoader(nil), time.Minute)
	if _, err := repo.GetSet(context.Background(), "nope"); !errors.Is(err, domain.ErrSetNotFound) {
		t.Fatalf("expected set not found, got %v", err)
	}
}

type countingLoader struct {
	SetLoader
	calls int
}

func (l *countingLoader) LoadSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	l.calls++
	return l.SetLoader.LoadSet(ctx, setID)
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID: "set-1",
		Questions: []json.RawMessage{
			json.RawMessage(`{"question":"What is 2 + 2?","choices":["3","4","5"],"correctIndex":1,"points":10}`),
		},
	}
}
