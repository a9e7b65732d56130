package migration

import (
	"context"
	"fmt"

	"checkwise/api/internal/checklist"
	"checkwise/api/internal/match"
	"checkwise/api/internal/store"
)

// Strategy decides what happens to the responses of one old question.
type Strategy string

const (
	StrategyPreserveExact  Strategy = "PRESERVE_EXACT"
	StrategyMigrateSimilar Strategy = "MIGRATE_SIMILAR"
	StrategyArchiveDeleted Strategy = "ARCHIVE_DELETED"
	StrategyPromptUser     Strategy = "PROMPT_USER"
)

// Plan is the per-question migration decision. TargetQuestionID is the
// internal id of the surviving question row; empty when nothing is carried
// forward automatically.
type Plan struct {
	Strategy             Strategy `json:"strategy"`
	TargetQuestionID     string   `json:"targetQuestionId,omitempty"`
	RequiresUserAction   bool     `json:"requiresUserAction"`
	Reason               string   `json:"reason"`
	ResponseCount        int      `json:"responseCount"`
	AffectedSubjectCount int      `json:"affectedSubjectCount"`
}

// ActionItem is one user-facing review entry, built only from plans that
// need a human decision.
type ActionItem struct {
	QuestionID           string `json:"questionId"`
	QuestionExcerpt      string `json:"questionExcerpt"`
	AffectedSubjectCount int    `json:"affectedSubjectCount"`
	Reason               string `json:"reason"`
}

// ImpactReport aggregates the migration plans for one checklist revision.
// Plans is keyed by the old question's internal id.
type ImpactReport struct {
	ChecklistID       string          `json:"checklistId"`
	TotalResponses    int             `json:"totalResponses"`
	AffectedResponses int             `json:"affectedResponses"`
	Plans             map[string]Plan `json:"plans"`
	ActionItems       []ActionItem    `json:"actionItems"`
}

type impactStore interface {
	CountCurrentResponses(ctx context.Context, questionID string) (responses int, subjects int, err error)
	CountCurrentResponsesForChecklist(ctx context.Context, checklistID string) (int, error)
	ListAnswersByQuestion(ctx context.Context, questionID string) ([]store.Answer, error)
}

// Analyzer turns question-level matches into migration plans.
type Analyzer struct {
	store impactStore
}

func NewAnalyzer(s impactStore) Analyzer {
	return Analyzer{store: s}
}

// Analyze builds a plan for every matched old question that currently has
// responses. NEW matches cannot have responses and are skipped.
func (a Analyzer) Analyze(ctx context.Context, checklistID string, questionMatches []match.EntityMatch) (ImpactReport, error) {
	report := ImpactReport{
		ChecklistID: checklistID,
		Plans:       make(map[string]Plan),
		ActionItems: make([]ActionItem, 0),
	}

	total, err := a.store.CountCurrentResponsesForChecklist(ctx, checklistID)
	if err != nil {
		return ImpactReport{}, err
	}
	report.TotalResponses = total

	for _, m := range questionMatches {
		if m.Old == nil {
			continue
		}
		oldQuestion, ok := m.Old.Ref.(store.Question)
		if !ok {
			return ImpactReport{}, fmt.Errorf("question match %s carries no stored question", m.ExternalID)
		}

		responses, subjects, err := a.store.CountCurrentResponses(ctx, oldQuestion.ID)
		if err != nil {
			return ImpactReport{}, err
		}
		if responses == 0 {
			continue
		}

		plan, err := a.planFor(ctx, m, oldQuestion)
		if err != nil {
			return ImpactReport{}, err
		}
		plan.ResponseCount = responses
		plan.AffectedSubjectCount = subjects
		report.Plans[oldQuestion.ID] = plan

		if plan.Strategy != StrategyPreserveExact {
			report.AffectedResponses += responses
		}
		if plan.RequiresUserAction {
			report.ActionItems = append(report.ActionItems, ActionItem{
				QuestionID:           oldQuestion.ID,
				QuestionExcerpt:      excerpt(oldQuestion.Text),
				AffectedSubjectCount: subjects,
				Reason:               plan.Reason,
			})
		}
	}

	return report, nil
}

func (a Analyzer) planFor(ctx context.Context, m match.EntityMatch, oldQuestion store.Question) (Plan, error) {
	switch m.Type {
	case match.TypeExact:
		return Plan{
			Strategy:         StrategyPreserveExact,
			TargetQuestionID: oldQuestion.ID,
			Reason:           "question unchanged, responses stay as they are",
		}, nil
	case match.TypeSimilar:
		newQuestion, ok := m.New.Ref.(*checklist.DocQuestion)
		if !ok {
			return Plan{}, fmt.Errorf("similar match %s carries no candidate question", m.ExternalID)
		}
		compatible, err := a.answersCompatible(ctx, oldQuestion, newQuestion)
		if err != nil {
			return Plan{}, err
		}
		if compatible {
			return Plan{
				Strategy:         StrategyMigrateSimilar,
				TargetQuestionID: oldQuestion.ID,
				Reason:           fmt.Sprintf("question matched with confidence %.2f, answers compatible", m.Confidence),
			}, nil
		}
		return Plan{
			Strategy:           StrategyPromptUser,
			RequiresUserAction: true,
			Reason:             fmt.Sprintf("question matched with confidence %.2f but answer sets are incompatible", m.Confidence),
		}, nil
	case match.TypeDeleted:
		return Plan{
			Strategy:           StrategyArchiveDeleted,
			RequiresUserAction: true,
			Reason:             "question removed in the new revision",
		}, nil
	default:
		return Plan{}, fmt.Errorf("unexpected match type %s for question %s", m.Type, oldQuestion.ID)
	}
}

// answersCompatible reports whether existing answer references can survive
// the new revision: the answer type is unchanged and every old answer's
// external id still exists among the candidate's answers.
func (a Analyzer) answersCompatible(ctx context.Context, oldQuestion store.Question, newQuestion *checklist.DocQuestion) (bool, error) {
	if oldQuestion.AnswerType != newQuestion.AnswerType {
		return false, nil
	}
	oldAnswers, err := a.store.ListAnswersByQuestion(ctx, oldQuestion.ID)
	if err != nil {
		return false, err
	}
	newIDs := make(map[string]bool, len(newQuestion.Answers))
	for _, answer := range newQuestion.Answers {
		newIDs[answer.ID] = true
	}
	for _, answer := range oldAnswers {
		if !newIDs[answer.ExternalID] {
			return false, nil
		}
	}
	return true, nil
}

func excerpt(text string) string {
	const limit = 80
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
