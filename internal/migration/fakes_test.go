package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"checkwise/api/internal/store"
)

// memStore is an in-memory response store for exercising the history,
// analyzer, and executor against real state transitions.
type memStore struct {
	responses     map[string]store.Response
	history       []store.ResponseHistory
	nextHistoryID int64
	answers       map[string][]store.Answer
	checklistID   string

	failUpdateQuestion map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		responses:          make(map[string]store.Response),
		answers:            make(map[string][]store.Answer),
		failUpdateQuestion: make(map[string]error),
	}
}

func (m *memStore) put(r store.Response) {
	m.responses[r.ID] = r
}

func (m *memStore) GetResponse(_ context.Context, responseID string) (store.Response, error) {
	r, ok := m.responses[responseID]
	if !ok {
		return store.Response{}, sql.ErrNoRows
	}
	return r, nil
}

func (m *memStore) GetResponseHistoryEntry(_ context.Context, historyID int64) (store.ResponseHistory, error) {
	for _, entry := range m.history {
		if entry.ID == historyID {
			return entry, nil
		}
	}
	return store.ResponseHistory{}, sql.ErrNoRows
}

func (m *memStore) InsertResponseHistory(_ context.Context, entry store.ResponseHistory) error {
	m.nextHistoryID++
	entry.ID = m.nextHistoryID
	m.history = append(m.history, entry)
	return nil
}

func (m *memStore) UpdateResponseContent(_ context.Context, responseID string, answerID *string, answerText, sourceType, comment string, version int) error {
	r, ok := m.responses[responseID]
	if !ok {
		return errors.New("response not found")
	}
	r.AnswerID = answerID
	r.AnswerText = answerText
	r.SourceType = sourceType
	r.Comment = comment
	r.Version = version
	m.responses[responseID] = r
	return nil
}

func (m *memStore) ListResponsesByQuestion(_ context.Context, questionID string) ([]store.Response, error) {
	items := make([]store.Response, 0)
	for _, r := range m.responses {
		if r.QuestionID != nil && *r.QuestionID == questionID {
			items = append(items, r)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *memStore) UpdateResponseQuestion(_ context.Context, responseID, questionID string) error {
	if err := m.failUpdateQuestion[responseID]; err != nil {
		return err
	}
	r, ok := m.responses[responseID]
	if !ok {
		return errors.New("response not found")
	}
	r.QuestionID = &questionID
	m.responses[responseID] = r
	return nil
}

func (m *memStore) SetResponseCurrent(_ context.Context, responseID string, current bool) error {
	r, ok := m.responses[responseID]
	if !ok {
		return errors.New("response not found")
	}
	r.IsCurrent = current
	m.responses[responseID] = r
	return nil
}

func (m *memStore) CountCurrentResponses(ctx context.Context, questionID string) (int, int, error) {
	items, _ := m.ListResponsesByQuestion(ctx, questionID)
	subjects := make(map[string]bool)
	count := 0
	for _, r := range items {
		if r.IsCurrent {
			count++
			subjects[r.SubjectID] = true
		}
	}
	return count, len(subjects), nil
}

func (m *memStore) CountCurrentResponsesForChecklist(_ context.Context, checklistID string) (int, error) {
	if m.checklistID != "" && checklistID != m.checklistID {
		return 0, fmt.Errorf("unknown checklist %s", checklistID)
	}
	count := 0
	for _, r := range m.responses {
		if r.IsCurrent {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListAnswersByQuestion(_ context.Context, questionID string) ([]store.Answer, error) {
	return m.answers[questionID], nil
}

func strptr(s string) *string { return &s }
