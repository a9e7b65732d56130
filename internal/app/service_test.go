package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"testing"

	"checkwise/api/internal/store"
)

const docV1 = `{
	"id": "cl-basics",
	"title": "Character basics",
	"description": "Core questions about a character",
	"goal": "Establish the essentials",
	"sections": [
		{"id": "s1", "title": "Appearance", "number": "1", "subsections": [
			{"id": "ss1", "title": "Face", "number": "1.1", "questionGroups": [
				{"id": "g1", "title": "Eyes and marks", "questions": [
					{"id": "q1", "text": "What color are the character's eyes?", "answerType": "single", "answers": [
						{"id": "a1", "value": {"male": "Blue", "female": "Blue"}},
						{"id": "a2", "value": {"male": "Green", "female": "Green"}}
					]},
					{"id": "q2", "text": "Does the character wear glasses?", "answerType": "single", "answers": [
						{"id": "a3", "value": {"male": "Yes", "female": "Yes"}},
						{"id": "a4", "value": {"male": "No", "female": "No"}}
					]},
					{"id": "q3", "text": "Describe the character's scars", "answerType": "multiple", "answers": []}
				]}
			]}
		]}
	]
}`

// Second revision: q1 reworded under the same id, q2 replaced by q9 with a
// near-identical text and the same answer set, q3 removed.
const docV2 = `{
	"id": "cl-basics",
	"title": "Character basics",
	"description": "Core questions about a character",
	"goal": "Establish the essentials",
	"sections": [
		{"id": "s1", "title": "Appearance", "number": "1", "subsections": [
			{"id": "ss1", "title": "Face", "number": "1.1", "questionGroups": [
				{"id": "g1", "title": "Eyes and marks", "questions": [
					{"id": "q1", "text": "What colour are the character's eyes?", "answerType": "single", "answers": [
						{"id": "a1", "value": {"male": "Blue", "female": "Blue"}},
						{"id": "a2", "value": {"male": "Green", "female": "Green"}}
					]},
					{"id": "q9", "text": "Does the character wear glasses now?", "answerType": "single", "answers": [
						{"id": "a3", "value": {"male": "Yes", "female": "Yes"}},
						{"id": "a4", "value": {"male": "No", "female": "No"}}
					]}
				]}
			]}
		]}
	]
}`

func newTestService() (*Service, *memStore) {
	m := newMemStore()
	return NewService(m, nil, nil, nil, nil), m
}

func mustQuestion(t *testing.T, m *memStore, externalID string) store.Question {
	t.Helper()
	question, ok := m.questionByExternalID(externalID)
	if !ok {
		t.Fatalf("question %s not found", externalID)
	}
	return question
}

func answerID(t *testing.T, m *memStore, questionID, externalID string) string {
	t.Helper()
	for _, answer := range m.answers {
		if answer.QuestionID == questionID && answer.ExternalID == externalID {
			return answer.ID
		}
	}
	t.Fatalf("answer %s not found under question %s", externalID, questionID)
	return ""
}

func submit(t *testing.T, svc *Service, subjectID, questionID string, answerID *string, text string) store.Response {
	t.Helper()
	response, err := svc.SubmitResponse(context.Background(), SubmitResponseInput{
		SubjectID:  subjectID,
		QuestionID: questionID,
		AnswerID:   answerID,
		AnswerText: text,
	})
	if err != nil {
		t.Fatalf("submit response: %v", err)
	}
	return response
}

func TestUpdateChecklistCreates(t *testing.T) {
	svc, m := newTestService()

	result, err := svc.UpdateChecklist(context.Background(), "chk_main", []byte(docV1), false, false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if result.Action != "created" {
		t.Fatalf("action = %s, want created", result.Action)
	}
	if result.EntityCounts.Sections.Added != 1 || result.EntityCounts.Questions.Added != 3 || result.EntityCounts.Answers.Added != 4 {
		t.Fatalf("unexpected entity counts: %+v", result.EntityCounts)
	}

	created := m.checklists["chk_main"]
	if created.Version != 1 {
		t.Fatalf("version = %d, want 1", created.Version)
	}
	if created.Title != "Character basics" {
		t.Fatalf("title = %q", created.Title)
	}
	versions, _ := m.ListChecklistVersions(context.Background(), "chk_main")
	if len(versions) != 1 || versions[0].Version != 1 || !versions[0].IsCurrent {
		t.Fatalf("unexpected version rows: %+v", versions)
	}
}

func TestUpdateChecklistNoChanges(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	if _, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV1), false, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	result, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV1), false, false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if result.Action != "no_changes" {
		t.Fatalf("action = %s, want no_changes", result.Action)
	}
	if m.checklists["chk_main"].Version != 1 {
		t.Fatalf("version changed on a no-op update")
	}
}

func TestUpdateChecklistRefusesWhenResponsesNotMigrated(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	if _, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV1), false, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	q3 := mustQuestion(t, m, "q3")
	submit(t, svc, "hero", q3.ID, nil, "A thin scar above the left brow")

	_, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV2), false, false)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusConflict {
		t.Fatalf("err = %v, want 409 conflict", err)
	}
	if _, ok := m.questionByExternalID("q3"); !ok {
		t.Fatalf("q3 was deleted despite the refusal")
	}
	if m.checklists["chk_main"].Version != 1 {
		t.Fatalf("version changed despite the refusal")
	}
}

// Full revision flow: reworded question keeps its responses untouched, a
// replaced question carries responses over silently, and a removed question
// archives them with a snapshot each.
func TestUpdateChecklistMigratesAndApplies(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	if _, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV1), false, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	q1 := mustQuestion(t, m, "q1")
	q2 := mustQuestion(t, m, "q2")
	q3 := mustQuestion(t, m, "q3")

	blue := answerID(t, m, q1.ID, "a1")
	yes := answerID(t, m, q2.ID, "a3")
	eyeResponse := submit(t, svc, "hero", q1.ID, &blue, "")
	glassesResponse := submit(t, svc, "hero", q2.ID, &yes, "")
	submit(t, svc, "hero", q3.ID, nil, "A thin scar above the left brow")
	submit(t, svc, "villain", q3.ID, nil, "Burn marks on both hands")
	submit(t, svc, "sidekick", q3.ID, nil, "None")

	result, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV2), false, true)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if result.Action != "updated" {
		t.Fatalf("action = %s, want updated", result.Action)
	}
	if result.Migration == nil {
		t.Fatalf("expected a migration result")
	}
	if result.Migration.Migrated != 2 || result.Migration.Archived != 3 || result.Migration.Failed != 0 {
		t.Fatalf("migration = %+v", *result.Migration)
	}
	if result.UnresolvedItems != 1 {
		t.Fatalf("unresolved = %d, want 1", result.UnresolvedItems)
	}
	if result.EntityCounts.Questions.Updated != 2 || result.EntityCounts.Questions.Deleted != 1 {
		t.Fatalf("question counts = %+v", result.EntityCounts.Questions)
	}

	if m.checklists["chk_main"].Version != 2 {
		t.Fatalf("version = %d, want 2", m.checklists["chk_main"].Version)
	}

	// Reworded question: same row, new text, response untouched.
	updatedQ1, err := m.GetQuestion(ctx, q1.ID)
	if err != nil {
		t.Fatalf("q1 row is gone: %v", err)
	}
	if updatedQ1.Text != "What colour are the character's eyes?" {
		t.Fatalf("q1 text = %q", updatedQ1.Text)
	}
	gotEye := m.responses[eyeResponse.ID]
	if !gotEye.IsCurrent || gotEye.Version != 1 || *gotEye.AnswerID != blue {
		t.Fatalf("eye response was touched: %+v", gotEye)
	}
	if len(m.historyFor(eyeResponse.ID)) != 0 {
		t.Fatalf("eye response grew history")
	}

	// Replaced question: the old row survives under the new external id and
	// the response follows it without a snapshot.
	migratedQ, err := m.GetQuestion(ctx, q2.ID)
	if err != nil {
		t.Fatalf("q2 row is gone: %v", err)
	}
	if migratedQ.ExternalID != "q9" {
		t.Fatalf("q2 external id = %s, want q9", migratedQ.ExternalID)
	}
	gotGlasses := m.responses[glassesResponse.ID]
	if !gotGlasses.IsCurrent || *gotGlasses.QuestionID != q2.ID {
		t.Fatalf("glasses response = %+v", gotGlasses)
	}
	if len(m.historyFor(glassesResponse.ID)) != 0 {
		t.Fatalf("glasses response grew history")
	}

	// Removed question: row deleted, responses archived with one snapshot each.
	if _, err := m.GetQuestion(ctx, q3.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("q3 still present")
	}
	archived := 0
	for _, response := range m.responses {
		if response.QuestionID != nil && *response.QuestionID == q3.ID {
			if response.IsCurrent {
				t.Fatalf("response %s still current after archive", response.ID)
			}
			if len(m.historyFor(response.ID)) != 1 {
				t.Fatalf("response %s has %d history rows, want 1", response.ID, len(m.historyFor(response.ID)))
			}
			archived++
		}
	}
	if archived != 3 {
		t.Fatalf("archived = %d, want 3", archived)
	}

	versions, _ := m.ListChecklistVersions(ctx, "chk_main")
	if len(versions) != 2 || versions[0].Version != 2 || !versions[0].IsCurrent || versions[1].IsCurrent {
		t.Fatalf("version rows = %+v", versions)
	}
}

func TestCheckForUpdates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	check, err := svc.CheckForUpdates(ctx, "chk_main", []byte(docV1))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !check.IsNew || !check.HasUpdates {
		t.Fatalf("fresh checklist: %+v", check)
	}

	if _, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV1), false, false); err != nil {
		t.Fatalf("create: %v", err)
	}

	check, err = svc.CheckForUpdates(ctx, "chk_main", []byte(docV1))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if check.HasUpdates || check.FileHashChanged || check.NewVersion != 1 {
		t.Fatalf("identical document: %+v", check)
	}

	check, err = svc.CheckForUpdates(ctx, "chk_main", []byte(docV2))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !check.HasUpdates || check.NewVersion != 2 {
		t.Fatalf("changed document: %+v", check)
	}
}

func TestAnalyzeChanges(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV1), false, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	analysis, err := svc.AnalyzeChanges(ctx, "chk_main", []byte(docV2))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if analysis.Summary.DeletedEntities != 1 {
		t.Fatalf("deleted = %d, want 1 (q3)", analysis.Summary.DeletedEntities)
	}
	if analysis.Summary.BreakingChanges != 1 {
		t.Fatalf("breaking = %d, want 1", analysis.Summary.BreakingChanges)
	}
	if analysis.Summary.NewEntities != 0 {
		t.Fatalf("new = %d, want 0 (q9 is a rename)", analysis.Summary.NewEntities)
	}

	var sawSimilar bool
	for _, view := range analysis.MatchesByLevel["questions"] {
		if view.Type == "SIMILAR" && view.ExternalID == "q2" {
			sawSimilar = true
			if view.Confidence < 0.8 {
				t.Fatalf("similar confidence = %f", view.Confidence)
			}
		}
	}
	if !sawSimilar {
		t.Fatalf("q2 was not matched as similar: %+v", analysis.MatchesByLevel["questions"])
	}
}

func TestAnalyzeMigrationImpact(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	if _, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV1), false, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	q3 := mustQuestion(t, m, "q3")
	submit(t, svc, "hero", q3.ID, nil, "A thin scar")
	submit(t, svc, "villain", q3.ID, nil, "Burn marks")

	result, err := svc.AnalyzeMigrationImpact(ctx, "chk_main", []byte(docV2))
	if err != nil {
		t.Fatalf("impact: %v", err)
	}
	if result.Report.AffectedResponses != 2 {
		t.Fatalf("affected = %d, want 2", result.Report.AffectedResponses)
	}
	if len(result.Report.ActionItems) != 1 || result.Report.ActionItems[0].AffectedSubjectCount != 2 {
		t.Fatalf("action items = %+v", result.Report.ActionItems)
	}
	if result.ReviewToken != "" {
		t.Fatalf("review token without a review store")
	}
}

func TestSubmitResponseVersioning(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	if _, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV1), false, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	q1 := mustQuestion(t, m, "q1")
	blue := answerID(t, m, q1.ID, "a1")
	green := answerID(t, m, q1.ID, "a2")

	first := submit(t, svc, "hero", q1.ID, &blue, "")
	if first.Version != 1 || !first.IsCurrent {
		t.Fatalf("first submission: %+v", first)
	}

	second := submit(t, svc, "hero", q1.ID, &green, "")
	if second.ID != first.ID {
		t.Fatalf("resubmission created a new row")
	}
	if second.Version != 2 || *second.AnswerID != green {
		t.Fatalf("resubmission: %+v", second)
	}

	entries := m.historyFor(first.ID)
	if len(entries) != 1 {
		t.Fatalf("history rows = %d, want 1", len(entries))
	}
	if *entries[0].PreviousAnswerID != blue || entries[0].PreviousVersion != 1 {
		t.Fatalf("snapshot = %+v", entries[0])
	}
	if entries[0].ChangeReason != "updated by subject" {
		t.Fatalf("reason = %q", entries[0].ChangeReason)
	}
}

func TestSubmitResponseRejectsBadInput(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	if _, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV1), false, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	q1 := mustQuestion(t, m, "q1")
	q2 := mustQuestion(t, m, "q2")

	_, err := svc.SubmitResponse(ctx, SubmitResponseInput{SubjectID: "hero", QuestionID: q1.ID, SourceType: "guessed"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_SOURCE_TYPE" {
		t.Fatalf("bad source type: %v", err)
	}

	wrongAnswer := answerID(t, m, q2.ID, "a3")
	_, err = svc.SubmitResponse(ctx, SubmitResponseInput{SubjectID: "hero", QuestionID: q1.ID, AnswerID: &wrongAnswer})
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_ANSWER" {
		t.Fatalf("cross-question answer: %v", err)
	}

	_, err = svc.SubmitResponse(ctx, SubmitResponseInput{SubjectID: "", QuestionID: q1.ID})
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusBadRequest {
		t.Fatalf("missing subject: %v", err)
	}
}

func TestRestoreResponse(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	if _, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV1), false, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	q1 := mustQuestion(t, m, "q1")
	blue := answerID(t, m, q1.ID, "a1")
	green := answerID(t, m, q1.ID, "a2")

	response := submit(t, svc, "hero", q1.ID, &blue, "")
	submit(t, svc, "hero", q1.ID, &green, "")

	entries := m.historyFor(response.ID)
	if err := svc.RestoreResponse(ctx, response.ID, entries[0].ID); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored := m.responses[response.ID]
	if *restored.AnswerID != blue || restored.Version != 3 {
		t.Fatalf("restored = %+v", restored)
	}
}

func TestDeleteResponse(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	if _, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV1), false, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	q1 := mustQuestion(t, m, "q1")
	response := submit(t, svc, "hero", q1.ID, nil, "grey")

	if err := svc.DeleteResponse(ctx, response.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := m.responses[response.ID]; ok {
		t.Fatalf("response still present")
	}
	if err := svc.DeleteResponse(ctx, response.ID); err == nil {
		t.Fatalf("expected an error deleting twice")
	}
}

func TestListResponsesRequiresSubject(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.ListResponses(context.Background(), "", "")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestUpdateChecklistRejectsMalformedDocument(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.UpdateChecklist(context.Background(), "chk_main", []byte(`{"title": "no ids"}`), false, false)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_DOCUMENT" {
		t.Fatalf("err = %v, want INVALID_DOCUMENT", err)
	}
}

func TestUpdateChecklistSummaryNamesLevels(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV1), false, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	result, err := svc.UpdateChecklist(ctx, "chk_main", []byte(docV2), false, true)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	joined := strings.Join(result.ChangeSummary, "; ")
	if !strings.Contains(joined, "questions:") {
		t.Fatalf("summary = %q", joined)
	}
}
