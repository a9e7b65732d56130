package migration

import (
	"context"
	"testing"

	"checkwise/api/internal/checklist"
	"checkwise/api/internal/match"
	"checkwise/api/internal/store"
)

func questionMatch(matchType match.Type, confidence float64, oldQuestion store.Question, newQuestion *checklist.DocQuestion) match.EntityMatch {
	m := match.EntityMatch{Type: matchType, Confidence: confidence, ExternalID: oldQuestion.ExternalID}
	m.Old = &match.Entity{ExternalID: oldQuestion.ExternalID, Title: oldQuestion.Text, AnswerType: oldQuestion.AnswerType, Ref: oldQuestion}
	if newQuestion != nil {
		m.New = &match.Entity{ExternalID: newQuestion.ID, Title: newQuestion.Text, AnswerType: newQuestion.AnswerType, Ref: newQuestion}
	}
	return m
}

func TestAnalyzeExactMatchPreserves(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	mem.put(store.Response{ID: "r1", SubjectID: "sub1", QuestionID: strptr("qrow1"), IsCurrent: true})

	oldQuestion := store.Question{ID: "qrow1", ExternalID: "q1", Text: "How tall?", AnswerType: "single"}
	newQuestion := &checklist.DocQuestion{ID: "q1", Text: "How tall is the character?", AnswerType: "single"}

	report, err := NewAnalyzer(mem).Analyze(ctx, "cl1", []match.EntityMatch{
		questionMatch(match.TypeExact, 1.0, oldQuestion, newQuestion),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	plan, ok := report.Plans["qrow1"]
	if !ok {
		t.Fatal("expected a plan for qrow1")
	}
	if plan.Strategy != StrategyPreserveExact {
		t.Fatalf("expected PRESERVE_EXACT, got %s", plan.Strategy)
	}
	if plan.RequiresUserAction {
		t.Fatal("exact match must not need user action")
	}
	if report.AffectedResponses != 0 {
		t.Fatalf("preserved responses are not affected, got %d", report.AffectedResponses)
	}
	if report.TotalResponses != 1 {
		t.Fatalf("expected total 1, got %d", report.TotalResponses)
	}
}

func TestAnalyzeSimilarCompatibleAnswersMigrates(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	mem.put(store.Response{ID: "r1", SubjectID: "sub1", QuestionID: strptr("qrow1"), IsCurrent: true})
	mem.answers["qrow1"] = []store.Answer{{ID: "arow1", ExternalID: "a1"}}

	oldQuestion := store.Question{ID: "qrow1", ExternalID: "q2", Text: "Eye color", AnswerType: "single"}
	newQuestion := &checklist.DocQuestion{
		ID: "q9", Text: "Eye colour", AnswerType: "single",
		Answers: []checklist.DocAnswer{{ID: "a1"}, {ID: "a2"}},
	}

	report, err := NewAnalyzer(mem).Analyze(ctx, "cl1", []match.EntityMatch{
		questionMatch(match.TypeSimilar, 0.85, oldQuestion, newQuestion),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	plan := report.Plans["qrow1"]
	if plan.Strategy != StrategyMigrateSimilar {
		t.Fatalf("expected MIGRATE_SIMILAR, got %s (%s)", plan.Strategy, plan.Reason)
	}
	if plan.TargetQuestionID != "qrow1" {
		t.Fatalf("expected migration onto the surviving row, got %q", plan.TargetQuestionID)
	}
	if report.AffectedResponses != 1 {
		t.Fatalf("expected 1 affected response, got %d", report.AffectedResponses)
	}
	if len(report.ActionItems) != 0 {
		t.Fatalf("compatible migration needs no review, got %d items", len(report.ActionItems))
	}
}

func TestAnalyzeSimilarIncompatibleAnswersPromptsUser(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	mem.put(store.Response{ID: "r1", SubjectID: "sub1", QuestionID: strptr("qrow1"), IsCurrent: true})
	mem.answers["qrow1"] = []store.Answer{{ID: "arow1", ExternalID: "a1"}, {ID: "arow2", ExternalID: "a2"}}

	oldQuestion := store.Question{ID: "qrow1", ExternalID: "q2", Text: "Eye color", AnswerType: "single"}
	// a2 disappeared from the candidate: old answer set is not a subset.
	newQuestion := &checklist.DocQuestion{
		ID: "q9", Text: "Eye colour", AnswerType: "single",
		Answers: []checklist.DocAnswer{{ID: "a1"}},
	}

	report, err := NewAnalyzer(mem).Analyze(ctx, "cl1", []match.EntityMatch{
		questionMatch(match.TypeSimilar, 0.85, oldQuestion, newQuestion),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	plan := report.Plans["qrow1"]
	if plan.Strategy != StrategyPromptUser {
		t.Fatalf("expected PROMPT_USER, got %s", plan.Strategy)
	}
	if !plan.RequiresUserAction || plan.TargetQuestionID != "" {
		t.Fatalf("prompt plan must need review and carry no target, got %+v", plan)
	}
	if len(report.ActionItems) != 1 {
		t.Fatalf("expected 1 action item, got %d", len(report.ActionItems))
	}
}

func TestAnalyzeAnswerTypeChangePromptsUser(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	mem.put(store.Response{ID: "r1", SubjectID: "sub1", QuestionID: strptr("qrow1"), IsCurrent: true})

	oldQuestion := store.Question{ID: "qrow1", ExternalID: "q2", Text: "Eye color", AnswerType: "single"}
	newQuestion := &checklist.DocQuestion{ID: "q9", Text: "Eye colour", AnswerType: "multiple"}

	report, err := NewAnalyzer(mem).Analyze(ctx, "cl1", []match.EntityMatch{
		questionMatch(match.TypeSimilar, 0.85, oldQuestion, newQuestion),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.Plans["qrow1"].Strategy != StrategyPromptUser {
		t.Fatalf("expected PROMPT_USER on answer type change, got %s", report.Plans["qrow1"].Strategy)
	}
}

func TestAnalyzeDeletedQuestionArchives(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	for _, id := range []string{"r1", "r2", "r3"} {
		mem.put(store.Response{ID: id, SubjectID: "subject_" + id, QuestionID: strptr("qrow1"), IsCurrent: true})
	}

	oldQuestion := store.Question{ID: "qrow1", ExternalID: "q3", Text: "Removed question", AnswerType: "single"}
	report, err := NewAnalyzer(mem).Analyze(ctx, "cl1", []match.EntityMatch{
		questionMatch(match.TypeDeleted, 1.0, oldQuestion, nil),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	plan := report.Plans["qrow1"]
	if plan.Strategy != StrategyArchiveDeleted {
		t.Fatalf("expected ARCHIVE_DELETED, got %s", plan.Strategy)
	}
	if plan.ResponseCount != 3 || plan.AffectedSubjectCount != 3 {
		t.Fatalf("expected 3 responses across 3 subjects, got %+v", plan)
	}
	if report.AffectedResponses != 3 {
		t.Fatalf("expected 3 affected responses, got %d", report.AffectedResponses)
	}
}

func TestAnalyzeSkipsQuestionsWithoutResponses(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()

	oldQuestion := store.Question{ID: "qrow1", ExternalID: "q1", Text: "Unanswered", AnswerType: "single"}
	report, err := NewAnalyzer(mem).Analyze(ctx, "cl1", []match.EntityMatch{
		questionMatch(match.TypeDeleted, 1.0, oldQuestion, nil),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(report.Plans) != 0 {
		t.Fatalf("expected no plans for unanswered questions, got %d", len(report.Plans))
	}
}
