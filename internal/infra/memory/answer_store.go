package memory

import (
	"context"
	"sort"
	"sync"

	"quizsync-service/internal/domain"
)

// AnswerStore is an in-memory answer ledger with one slot per domain.AnswerKey.
type AnswerStore struct {
	mu      sync.Mutex
	records map[domain.AnswerKey]domain.AnswerRecord
	feed    *feed[[]domain.AnswerRecord]
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		records: make(map[domain.AnswerKey]domain.AnswerRecord),
		feed:    newFeed[[]domain.AnswerRecord](),
	}
}

func (s *AnswerStore) PutAnswer(_ context.Context, record domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Key()] = record
	s.feed.publish(s.listLocked())
	return nil
}

func (s *AnswerStore) GetAnswer(_ context.Context, key domain.AnswerKey) (domain.AnswerRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	return record, ok, nil
}

func (s *AnswerStore) ListAnswers(_ context.Context) ([]domain.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(), nil
}

func (s *AnswerStore) SubscribeAnswers(ctx context.Context) (<-chan []domain.AnswerRecord, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, cancel := s.feed.subscribe(ctx, s.listLocked(), true)
	return ch, cancel, nil
}

func (s *AnswerStore) listLocked() []domain.AnswerRecord {
	out := make([]domain.AnswerRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionIndex != out[j].QuestionIndex {
			return out[i].QuestionIndex < out[j].QuestionIndex
		}
		return out[i].TeamName < out[j].TeamName
	})
	return out
}
