package migration

import (
	"context"
	"fmt"

	"checkwise/api/internal/store"
)

type executorStore interface {
	ListResponsesByQuestion(ctx context.Context, questionID string) ([]store.Response, error)
	UpdateResponseQuestion(ctx context.Context, responseID, questionID string) error
	SetResponseCurrent(ctx context.Context, responseID string, current bool) error
}

// Result reports what one execution run did. Failed rows are listed in
// Errors and never abort the batch.
type Result struct {
	Migrated int      `json:"migrated"`
	Archived int      `json:"archived"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
}

// Executor applies migration plans to persisted responses. Best-effort: a
// storage failure on one response is recorded and the batch moves on, so a
// single bad row cannot block the migration of everyone else's responses.
type Executor struct {
	store   executorStore
	history History
}

func NewExecutor(s executorStore, history History) Executor {
	return Executor{store: s, history: history}
}

// Execute runs every plan in the map, keyed by old question internal id.
// With dryRun the same counts are computed without touching storage.
// Re-running the same plan map is safe: preserved rows are never touched,
// rewriting a question reference to the same target again changes nothing,
// and rows already archived are counted without another snapshot.
func (e Executor) Execute(ctx context.Context, plans map[string]Plan, dryRun bool) (Result, error) {
	result := Result{Errors: make([]string, 0)}

	for questionID, plan := range plans {
		responses, err := e.store.ListResponsesByQuestion(ctx, questionID)
		if err != nil {
			return Result{}, fmt.Errorf("load responses for question %s: %w", questionID, err)
		}

		for _, response := range responses {
			switch plan.Strategy {
			case StrategyPreserveExact:
				if response.IsCurrent {
					result.Migrated++
				}
			case StrategyMigrateSimilar:
				if !response.IsCurrent {
					continue
				}
				if dryRun {
					result.Migrated++
					continue
				}
				if err := e.store.UpdateResponseQuestion(ctx, response.ID, plan.TargetQuestionID); err != nil {
					result.Failed++
					result.Errors = append(result.Errors, fmt.Sprintf("response %s: %v", response.ID, err))
					continue
				}
				result.Migrated++
			case StrategyArchiveDeleted, StrategyPromptUser:
				if dryRun {
					result.Archived++
					continue
				}
				if err := e.archive(ctx, response, plan); err != nil {
					result.Failed++
					result.Errors = append(result.Errors, fmt.Sprintf("response %s: %v", response.ID, err))
					continue
				}
				result.Archived++
			default:
				return Result{}, fmt.Errorf("unknown strategy %s for question %s", plan.Strategy, questionID)
			}
		}
	}

	return result, nil
}

// archive retires a response: snapshot, version bump, then is_current off.
// Rows that are already archived are left alone so a re-run adds no history.
func (e Executor) archive(ctx context.Context, response store.Response, plan Plan) error {
	if !response.IsCurrent {
		return nil
	}
	fields := ResponseFields{
		AnswerID:   response.AnswerID,
		AnswerText: response.AnswerText,
		SourceType: response.SourceType,
		Comment:    response.Comment,
	}
	if _, err := e.history.RecordAndMutate(ctx, response, fields, plan.Reason); err != nil {
		return err
	}
	return e.store.SetResponseCurrent(ctx, response.ID, false)
}
