package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"

	"checkwise/api/internal/blob"
	"checkwise/api/internal/checklist"
	"checkwise/api/internal/gitrepo"
	"checkwise/api/internal/match"
	"checkwise/api/internal/migration"
	"checkwise/api/internal/search"
	"checkwise/api/internal/store"
	"checkwise/api/internal/util"
)

var allowedSourceTypes = map[string]struct{}{
	"found_in_text":     {},
	"logically_derived": {},
	"imagined":          {},
}

type dataStore interface {
	GetChecklist(context.Context, string) (store.Checklist, error)
	ListChecklists(context.Context) ([]store.Checklist, error)
	InsertChecklist(context.Context, store.Checklist) error
	UpdateChecklistMeta(context.Context, store.Checklist) error
	LoadTree(context.Context, string) (store.Tree, error)

	InsertSection(context.Context, store.Section) error
	UpdateSection(context.Context, store.Section) error
	DeleteSection(context.Context, string) error
	InsertSubsection(context.Context, store.Subsection) error
	UpdateSubsection(context.Context, store.Subsection) error
	DeleteSubsection(context.Context, string) error
	InsertQuestionGroup(context.Context, store.QuestionGroup) error
	UpdateQuestionGroup(context.Context, store.QuestionGroup) error
	DeleteQuestionGroup(context.Context, string) error
	GetQuestion(context.Context, string) (store.Question, error)
	InsertQuestion(context.Context, store.Question) error
	UpdateQuestion(context.Context, store.Question) error
	DeleteQuestion(context.Context, string) error
	InsertAnswer(context.Context, store.Answer) error
	UpdateAnswer(context.Context, store.Answer) error
	DeleteAnswer(context.Context, string) error
	ListAnswersByQuestion(context.Context, string) ([]store.Answer, error)

	CurrentResponseCountForQuestion(context.Context, string) (int, error)
	CurrentResponseCountForGroup(context.Context, string) (int, error)
	CurrentResponseCountForSubsection(context.Context, string) (int, error)
	CurrentResponseCountForSection(context.Context, string) (int, error)
	CountCurrentResponses(context.Context, string) (int, int, error)
	CountCurrentResponsesForChecklist(context.Context, string) (int, error)

	GetResponse(context.Context, string) (store.Response, error)
	GetCurrentResponse(context.Context, string, string) (*store.Response, error)
	ListResponsesByQuestion(context.Context, string) ([]store.Response, error)
	ListResponsesBySubject(context.Context, string, string) ([]store.Response, error)
	InsertResponse(context.Context, store.Response) error
	UpdateResponseContent(context.Context, string, *string, string, string, string, int) error
	UpdateResponseQuestion(context.Context, string, string) error
	SetResponseCurrent(context.Context, string, bool) error
	DeleteResponse(context.Context, string) error

	InsertResponseHistory(context.Context, store.ResponseHistory) error
	GetResponseHistoryEntry(context.Context, int64) (store.ResponseHistory, error)
	ListResponseHistory(context.Context, string) ([]store.ResponseHistory, error)

	InsertChecklistVersion(context.Context, string, int, string) error
	ListChecklistVersions(context.Context, string) ([]store.ChecklistVersion, error)

	Ping(context.Context) error
}

// reviewParker parks impact reports that need a human decision.
type reviewParker interface {
	Park(ctx context.Context, checklistID string, report migration.ImpactReport) (string, error)
	Lookup(ctx context.Context, token string) (migration.ImpactReport, error)
	Resolve(ctx context.Context, token string) error
}

type Service struct {
	store    dataStore
	history  migration.History
	analyzer migration.Analyzer
	executor migration.Executor
	applier  migration.Applier

	review  reviewParker
	gitrepo *gitrepo.Service
	search  *search.Service
	blobs   *blob.Store
}

// NewService wires the engine components around one data store. review,
// repos, searcher, and blobs are optional; nil disables the feature.
func NewService(dataStore dataStore, review reviewParker, repos *gitrepo.Service, searcher *search.Service, blobs *blob.Store) *Service {
	history := migration.NewHistory(dataStore)
	return &Service{
		store:    dataStore,
		history:  history,
		analyzer: migration.NewAnalyzer(dataStore),
		executor: migration.NewExecutor(dataStore, history),
		applier:  migration.NewApplier(dataStore),
		review:   review,
		gitrepo:  repos,
		search:   searcher,
		blobs:    blobs,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// UpdateCheck is the cheap pre-check result: hash and version comparison
// plus checklist-level field changes, no tree matching.
type UpdateCheck struct {
	HasUpdates      bool     `json:"hasUpdates"`
	IsNew           bool     `json:"isNew"`
	CurrentVersion  int      `json:"currentVersion"`
	NewVersion      int      `json:"newVersion"`
	FileHashChanged bool     `json:"fileHashChanged"`
	ChangeSummary   []string `json:"changeSummary"`
}

func (s *Service) CheckForUpdates(ctx context.Context, checklistID string, raw []byte) (UpdateCheck, error) {
	doc, err := checklist.ParseDocument(raw)
	if err != nil {
		return UpdateCheck{}, domainError(http.StatusBadRequest, "INVALID_DOCUMENT", err.Error(), nil)
	}
	fileHash := checklist.Hash(raw)

	existing, err := s.store.GetChecklist(ctx, checklistID)
	if errors.Is(err, sql.ErrNoRows) {
		return UpdateCheck{
			HasUpdates:      true,
			IsNew:           true,
			NewVersion:      1,
			FileHashChanged: true,
			ChangeSummary:   []string{"checklist does not exist yet"},
		}, nil
	}
	if err != nil {
		return UpdateCheck{}, err
	}

	check := UpdateCheck{
		CurrentVersion:  existing.Version,
		NewVersion:      existing.Version + 1,
		FileHashChanged: existing.FileHash != fileHash,
		ChangeSummary:   make([]string, 0),
	}
	if !check.FileHashChanged {
		check.NewVersion = existing.Version
		return check, nil
	}
	check.HasUpdates = true
	for _, change := range checklistFieldChanges(existing, doc) {
		check.ChangeSummary = append(check.ChangeSummary, fmt.Sprintf("%s changed", change.Field))
	}
	if len(check.ChangeSummary) == 0 {
		check.ChangeSummary = append(check.ChangeSummary, "document content changed")
	}
	return check, nil
}

type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// EntityMatchView is the wire form of one entity match.
type EntityMatchView struct {
	Type       string  `json:"type"`
	ExternalID string  `json:"externalId"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	OldTitle   string  `json:"oldTitle,omitempty"`
	NewTitle   string  `json:"newTitle,omitempty"`
}

type ChangeSummary struct {
	TotalChanges    int `json:"totalChanges"`
	BreakingChanges int `json:"breakingChanges"`
	NewEntities     int `json:"newEntities"`
	DeletedEntities int `json:"deletedEntities"`
}

type ChangeAnalysis struct {
	ChecklistID    string                       `json:"checklistId"`
	FieldChanges   []FieldChange                `json:"checklistFieldChanges"`
	MatchesByLevel map[string][]EntityMatchView `json:"entityMatchesByLevel"`
	Summary        ChangeSummary                `json:"summary"`
}

func (s *Service) AnalyzeChanges(ctx context.Context, checklistID string, raw []byte) (ChangeAnalysis, error) {
	doc, err := checklist.ParseDocument(raw)
	if err != nil {
		return ChangeAnalysis{}, domainError(http.StatusBadRequest, "INVALID_DOCUMENT", err.Error(), nil)
	}
	tree, err := s.store.LoadTree(ctx, checklistID)
	if err != nil {
		return ChangeAnalysis{}, err
	}

	matches := buildMatches(tree, &doc)
	analysis := ChangeAnalysis{
		ChecklistID:  checklistID,
		FieldChanges: checklistFieldChanges(tree.Checklist, doc),
		MatchesByLevel: map[string][]EntityMatchView{
			"sections":       matchViews(matches.Sections),
			"subsections":    matchViews(matches.Subsections),
			"questionGroups": matchViews(matches.Groups),
			"questions":      matchViews(matches.Questions),
			"answers":        matchViews(matches.Answers),
		},
	}

	for _, level := range [][]match.EntityMatch{matches.Sections, matches.Subsections, matches.Groups, matches.Questions, matches.Answers} {
		for _, m := range level {
			switch m.Type {
			case match.TypeNew:
				analysis.Summary.NewEntities++
				analysis.Summary.TotalChanges++
			case match.TypeDeleted:
				analysis.Summary.DeletedEntities++
				analysis.Summary.TotalChanges++
			case match.TypeSimilar:
				analysis.Summary.TotalChanges++
			}
		}
	}
	for _, m := range matches.Questions {
		if m.Type == match.TypeDeleted {
			analysis.Summary.BreakingChanges++
		}
	}
	return analysis, nil
}

// ImpactResult carries the impact report plus, when human review is needed
// and a review store is configured, the token the report is parked under.
type ImpactResult struct {
	Report      migration.ImpactReport `json:"report"`
	ReviewToken string                 `json:"reviewToken,omitempty"`
}

func (s *Service) AnalyzeMigrationImpact(ctx context.Context, checklistID string, raw []byte) (ImpactResult, error) {
	doc, err := checklist.ParseDocument(raw)
	if err != nil {
		return ImpactResult{}, domainError(http.StatusBadRequest, "INVALID_DOCUMENT", err.Error(), nil)
	}
	tree, err := s.store.LoadTree(ctx, checklistID)
	if err != nil {
		return ImpactResult{}, err
	}

	matches := buildMatches(tree, &doc)
	report, err := s.analyzer.Analyze(ctx, checklistID, matches.Questions)
	if err != nil {
		return ImpactResult{}, err
	}

	result := ImpactResult{Report: report}
	if len(report.ActionItems) > 0 && s.review != nil {
		token, err := s.review.Park(ctx, checklistID, report)
		if err != nil {
			log.Printf("review: park impact report for %s: %v", checklistID, err)
		} else {
			result.ReviewToken = token
		}
	}
	return result, nil
}

func (s *Service) ExecuteMigration(ctx context.Context, checklistID string, raw []byte, dryRun bool) (migration.Result, error) {
	doc, err := checklist.ParseDocument(raw)
	if err != nil {
		return migration.Result{}, domainError(http.StatusBadRequest, "INVALID_DOCUMENT", err.Error(), nil)
	}
	tree, err := s.store.LoadTree(ctx, checklistID)
	if err != nil {
		return migration.Result{}, err
	}

	matches := buildMatches(tree, &doc)
	report, err := s.analyzer.Analyze(ctx, checklistID, matches.Questions)
	if err != nil {
		return migration.Result{}, err
	}
	return s.executor.Execute(ctx, report.Plans, dryRun)
}

// UpdateResult is what update endpoints return: what happened, what changed,
// and how many archived responses still wait on a human decision.
type UpdateResult struct {
	Action          string                `json:"action"` // no_changes | created | updated
	ChecklistID     string                `json:"checklistId"`
	ChangeSummary   []string              `json:"changeSummary"`
	EntityCounts    migration.UpdateStats `json:"updatedEntityCounts"`
	Migration       *migration.Result     `json:"migration,omitempty"`
	UnresolvedItems int                   `json:"unresolvedItems"`
	ReviewToken     string                `json:"reviewToken,omitempty"`
}

// UpdateChecklist orchestrates the full revision flow: pre-check, match,
// response migration, tree application, then archive and reindex.
func (s *Service) UpdateChecklist(ctx context.Context, checklistID string, raw []byte, force, migrateResponses bool) (UpdateResult, error) {
	doc, err := checklist.ParseDocument(raw)
	if err != nil {
		return UpdateResult{}, domainError(http.StatusBadRequest, "INVALID_DOCUMENT", err.Error(), nil)
	}
	fileHash := checklist.Hash(raw)

	existing, err := s.store.GetChecklist(ctx, checklistID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.createChecklist(ctx, checklistID, &doc, raw, fileHash)
	}
	if err != nil {
		return UpdateResult{}, err
	}

	if existing.FileHash == fileHash && !force {
		return UpdateResult{
			Action:        "no_changes",
			ChecklistID:   existing.ID,
			ChangeSummary: []string{},
		}, nil
	}

	tree, err := s.store.LoadTree(ctx, checklistID)
	if err != nil {
		return UpdateResult{}, err
	}
	matches := buildMatches(tree, &doc)

	report, err := s.analyzer.Analyze(ctx, checklistID, matches.Questions)
	if err != nil {
		return UpdateResult{}, err
	}
	result := UpdateResult{
		Action:        "updated",
		ChecklistID:   existing.ID,
		ChangeSummary: summarizeMatches(matches),
	}

	if report.AffectedResponses > 0 && !migrateResponses && !force {
		return UpdateResult{}, domainError(http.StatusConflict, "RESPONSES_AFFECTED",
			fmt.Sprintf("%d responses are affected, re-run with migrate_responses or force", report.AffectedResponses),
			report.ActionItems)
	}
	if len(report.Plans) > 0 {
		migrationResult, err := s.executor.Execute(ctx, report.Plans, false)
		if err != nil {
			return UpdateResult{}, err
		}
		result.Migration = &migrationResult
	}

	result.UnresolvedItems = len(report.ActionItems)
	if result.UnresolvedItems > 0 && s.review != nil {
		token, err := s.review.Park(ctx, checklistID, report)
		if err != nil {
			log.Printf("review: park impact report for %s: %v", checklistID, err)
		} else {
			result.ReviewToken = token
		}
	}

	stats, err := s.applier.Apply(ctx, tree, &doc, matches, fileHash)
	if err != nil {
		return UpdateResult{}, err
	}
	result.EntityCounts = stats

	s.archiveRevision(ctx, existing.ID, raw, existing.Version+1, fileHash)
	return result, nil
}

func (s *Service) createChecklist(ctx context.Context, checklistID string, doc *checklist.Document, raw []byte, fileHash string) (UpdateResult, error) {
	if checklistID == "" {
		checklistID = util.NewID("chk")
	}
	created := store.Checklist{
		ID:         checklistID,
		ExternalID: doc.ID,
		Title:      doc.Title,
		Version:    0,
	}
	if err := s.store.InsertChecklist(ctx, created); err != nil {
		return UpdateResult{}, err
	}

	// An empty tree makes every candidate node NEW; the applier inserts the
	// whole document and bumps the version to 1.
	tree := store.Tree{Checklist: created}
	matches := buildMatches(tree, doc)
	stats, err := s.applier.Apply(ctx, tree, doc, matches, fileHash)
	if err != nil {
		return UpdateResult{}, err
	}

	s.archiveRevision(ctx, checklistID, raw, 1, fileHash)
	return UpdateResult{
		Action:        "created",
		ChecklistID:   checklistID,
		ChangeSummary: []string{"checklist imported"},
		EntityCounts:  stats,
	}, nil
}

// archiveRevision pushes the applied revision to the git archive, object
// storage, and the search index. All best-effort: the database is the
// source of truth and a dead archive must not fail the update.
func (s *Service) archiveRevision(ctx context.Context, checklistID string, raw []byte, version int, fileHash string) {
	if s.gitrepo != nil {
		if _, err := s.gitrepo.CommitRevision(checklistID, raw, version, fileHash); err != nil {
			log.Printf("gitrepo: archive revision %d of %s: %v", version, checklistID, err)
		}
	}
	if s.blobs != nil {
		if err := s.blobs.PutRevision(ctx, checklistID, version, fileHash, raw); err != nil {
			log.Printf("blob: archive revision %d of %s: %v", version, checklistID, err)
		}
	}
	if s.search != nil {
		s.search.ReindexChecklistFromPG(ctx)
	}
}

func (s *Service) GetChecklist(ctx context.Context, checklistID string) (store.Checklist, error) {
	return s.store.GetChecklist(ctx, checklistID)
}

func (s *Service) ListChecklists(ctx context.Context) ([]store.Checklist, error) {
	return s.store.ListChecklists(ctx)
}

func (s *Service) GetTree(ctx context.Context, checklistID string) (store.Tree, error) {
	return s.store.LoadTree(ctx, checklistID)
}

func (s *Service) GetVersionHistory(ctx context.Context, checklistID string) ([]store.ChecklistVersion, error) {
	if _, err := s.store.GetChecklist(ctx, checklistID); err != nil {
		return nil, err
	}
	return s.store.ListChecklistVersions(ctx, checklistID)
}

func (s *Service) GetRevisionHistory(checklistID string, limit int) ([]gitrepo.CommitInfo, error) {
	if s.gitrepo == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Revision archive not configured", nil)
	}
	return s.gitrepo.History(checklistID, limit)
}

type SubmitResponseInput struct {
	SubjectID  string  `json:"subjectId"`
	QuestionID string  `json:"questionId"`
	AnswerID   *string `json:"answerId"`
	AnswerText string  `json:"answerText"`
	SourceType string  `json:"sourceType"`
	Comment    string  `json:"comment"`
}

// SubmitResponse records a subject's answer. The first answer to a question
// inserts a fresh current response; later answers mutate it through the
// history primitive.
func (s *Service) SubmitResponse(ctx context.Context, input SubmitResponseInput) (store.Response, error) {
	if input.SubjectID == "" || input.QuestionID == "" {
		return store.Response{}, domainError(http.StatusBadRequest, "INVALID_RESPONSE", "subjectId and questionId are required", nil)
	}
	if input.SourceType == "" {
		input.SourceType = "found_in_text"
	}
	if _, ok := allowedSourceTypes[input.SourceType]; !ok {
		return store.Response{}, domainError(http.StatusBadRequest, "INVALID_SOURCE_TYPE", fmt.Sprintf("unknown source type %q", input.SourceType), nil)
	}

	question, err := s.store.GetQuestion(ctx, input.QuestionID)
	if err != nil {
		return store.Response{}, err
	}
	if input.AnswerID != nil {
		answers, err := s.store.ListAnswersByQuestion(ctx, question.ID)
		if err != nil {
			return store.Response{}, err
		}
		found := false
		for _, answer := range answers {
			if answer.ID == *input.AnswerID {
				found = true
				break
			}
		}
		if !found {
			return store.Response{}, domainError(http.StatusBadRequest, "INVALID_ANSWER", "answer does not belong to the question", nil)
		}
	}

	current, err := s.store.GetCurrentResponse(ctx, input.SubjectID, input.QuestionID)
	if err != nil {
		return store.Response{}, err
	}
	if current != nil {
		fields := migration.ResponseFields{
			AnswerID:   input.AnswerID,
			AnswerText: input.AnswerText,
			SourceType: input.SourceType,
			Comment:    input.Comment,
		}
		return s.history.RecordAndMutate(ctx, *current, fields, "updated by subject")
	}

	response := store.Response{
		ID:         util.NewID("rsp"),
		SubjectID:  input.SubjectID,
		QuestionID: &input.QuestionID,
		AnswerID:   input.AnswerID,
		AnswerText: input.AnswerText,
		SourceType: input.SourceType,
		Comment:    input.Comment,
		Version:    1,
		IsCurrent:  true,
	}
	if err := s.store.InsertResponse(ctx, response); err != nil {
		return store.Response{}, err
	}
	return response, nil
}

func (s *Service) GetResponse(ctx context.Context, responseID string) (store.Response, error) {
	return s.store.GetResponse(ctx, responseID)
}

func (s *Service) ListResponses(ctx context.Context, subjectID, checklistID string) ([]store.Response, error) {
	if subjectID == "" {
		return nil, domainError(http.StatusBadRequest, "INVALID_QUERY", "subject_id is required", nil)
	}
	return s.store.ListResponsesBySubject(ctx, subjectID, checklistID)
}

func (s *Service) GetResponseHistory(ctx context.Context, responseID string) ([]store.ResponseHistory, error) {
	if _, err := s.store.GetResponse(ctx, responseID); err != nil {
		return nil, err
	}
	return s.store.ListResponseHistory(ctx, responseID)
}

func (s *Service) RestoreResponse(ctx context.Context, responseID string, historyID int64) error {
	return s.history.Restore(ctx, responseID, historyID)
}

// DeleteResponse removes a response for good. The history trail goes with
// it; archiving, not deletion, is the way to retire an answer and keep it.
func (s *Service) DeleteResponse(ctx context.Context, responseID string) error {
	if _, err := s.store.GetResponse(ctx, responseID); err != nil {
		return err
	}
	return s.store.DeleteResponse(ctx, responseID)
}

func (s *Service) SearchQuestions(q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search not configured", nil)
	}
	return s.search.Search(q), nil
}

func (s *Service) LookupReview(ctx context.Context, token string) (migration.ImpactReport, error) {
	if s.review == nil {
		return migration.ImpactReport{}, domainError(http.StatusServiceUnavailable, "REVIEW_UNAVAILABLE", "Review store not configured", nil)
	}
	report, err := s.review.Lookup(ctx, token)
	if err != nil {
		return migration.ImpactReport{}, domainError(http.StatusNotFound, "REVIEW_NOT_FOUND", "Review token not found or expired", nil)
	}
	return report, nil
}

func (s *Service) ResolveReview(ctx context.Context, token string) error {
	if s.review == nil {
		return domainError(http.StatusServiceUnavailable, "REVIEW_UNAVAILABLE", "Review store not configured", nil)
	}
	return s.review.Resolve(ctx, token)
}

func checklistFieldChanges(existing store.Checklist, doc checklist.Document) []FieldChange {
	changes := make([]FieldChange, 0)
	pairs := []struct {
		field  string
		before string
		after  string
	}{
		{"title", existing.Title, doc.Title},
		{"description", existing.Description, doc.Description},
		{"goal", existing.Goal, doc.Goal},
	}
	for _, pair := range pairs {
		if pair.before != pair.after {
			changes = append(changes, FieldChange{Field: pair.field, Before: pair.before, After: pair.after})
		}
	}
	return changes
}

func matchViews(matches []match.EntityMatch) []EntityMatchView {
	views := make([]EntityMatchView, 0, len(matches))
	for _, m := range matches {
		view := EntityMatchView{
			Type:       string(m.Type),
			ExternalID: m.ExternalID,
			Confidence: m.Confidence,
			Reason:     m.Reason,
		}
		if m.Old != nil {
			view.OldTitle = m.Old.Title
		}
		if m.New != nil {
			view.NewTitle = m.New.Title
		}
		views = append(views, view)
	}
	return views
}

func summarizeMatches(matches migration.Matches) []string {
	summary := make([]string, 0)
	levels := []struct {
		name    string
		matches []match.EntityMatch
	}{
		{"sections", matches.Sections},
		{"subsections", matches.Subsections},
		{"question groups", matches.Groups},
		{"questions", matches.Questions},
		{"answers", matches.Answers},
	}
	for _, level := range levels {
		var similar, added, deleted int
		for _, m := range level.matches {
			switch m.Type {
			case match.TypeSimilar:
				similar++
			case match.TypeNew:
				added++
			case match.TypeDeleted:
				deleted++
			}
		}
		if similar+added+deleted == 0 {
			continue
		}
		summary = append(summary, fmt.Sprintf("%s: %d renamed, %d added, %d deleted", level.name, similar, added, deleted))
	}
	return summary
}

// buildMatches flattens the persisted tree and the candidate document per
// level and matches them. Answers are matched within the scope of their
// already-resolved parent question so identical option texts under
// different questions cannot cross-claim each other.
func buildMatches(tree store.Tree, doc *checklist.Document) migration.Matches {
	var matches migration.Matches

	oldSections := make([]match.Entity, 0, len(tree.Sections))
	for _, section := range tree.Sections {
		oldSections = append(oldSections, match.Entity{ExternalID: section.ExternalID, Title: section.Title, Number: section.Number, Ref: section})
	}
	newSections := make([]match.Entity, 0, len(doc.Sections))
	for si := range doc.Sections {
		docSection := &doc.Sections[si]
		newSections = append(newSections, match.Entity{ExternalID: docSection.ID, Title: docSection.Title, Number: docSection.Number, Ref: docSection})
	}
	matches.Sections = match.Match(match.KindSection, oldSections, newSections, match.DefaultThreshold)

	oldSubsections := make([]match.Entity, 0, len(tree.Subsections))
	for _, subsection := range tree.Subsections {
		oldSubsections = append(oldSubsections, match.Entity{ExternalID: subsection.ExternalID, Title: subsection.Title, Number: subsection.Number, Ref: subsection})
	}
	newSubsections := make([]match.Entity, 0)
	for si := range doc.Sections {
		for ssi := range doc.Sections[si].Subsections {
			docSubsection := &doc.Sections[si].Subsections[ssi]
			newSubsections = append(newSubsections, match.Entity{ExternalID: docSubsection.ID, Title: docSubsection.Title, Number: docSubsection.Number, Ref: docSubsection})
		}
	}
	matches.Subsections = match.Match(match.KindSubsection, oldSubsections, newSubsections, match.DefaultThreshold)

	oldGroups := make([]match.Entity, 0, len(tree.Groups))
	for _, group := range tree.Groups {
		oldGroups = append(oldGroups, match.Entity{ExternalID: group.ExternalID, Title: group.Title, Ref: group})
	}
	newGroups := make([]match.Entity, 0)
	for si := range doc.Sections {
		for ssi := range doc.Sections[si].Subsections {
			for gi := range doc.Sections[si].Subsections[ssi].Groups {
				docGroup := &doc.Sections[si].Subsections[ssi].Groups[gi]
				newGroups = append(newGroups, match.Entity{ExternalID: docGroup.ID, Title: docGroup.Title, Ref: docGroup})
			}
		}
	}
	matches.Groups = match.Match(match.KindGroup, oldGroups, newGroups, match.DefaultThreshold)

	oldQuestions := make([]match.Entity, 0, len(tree.Questions))
	for _, question := range tree.Questions {
		oldQuestions = append(oldQuestions, match.Entity{ExternalID: question.ExternalID, Title: question.Text, AnswerType: question.AnswerType, Ref: question})
	}
	newQuestions := make([]match.Entity, 0)
	for si := range doc.Sections {
		for ssi := range doc.Sections[si].Subsections {
			for gi := range doc.Sections[si].Subsections[ssi].Groups {
				for qi := range doc.Sections[si].Subsections[ssi].Groups[gi].Questions {
					docQuestion := &doc.Sections[si].Subsections[ssi].Groups[gi].Questions[qi]
					newQuestions = append(newQuestions, match.Entity{ExternalID: docQuestion.ID, Title: docQuestion.Text, AnswerType: docQuestion.AnswerType, Ref: docQuestion})
				}
			}
		}
	}
	matches.Questions = match.Match(match.KindQuestion, oldQuestions, newQuestions, match.DefaultThreshold)

	answersByQuestion := tree.AnswersByQuestion()
	for _, m := range matches.Questions {
		var oldAnswers []match.Entity
		if m.Old != nil {
			oldQuestion := m.Old.Ref.(store.Question)
			for _, answer := range answersByQuestion[oldQuestion.ID] {
				oldAnswers = append(oldAnswers, match.Entity{ExternalID: answer.ExternalID, Title: answer.ValueMale, AltTitle: answer.ValueFemale, Ref: answer})
			}
		}
		var newAnswers []match.Entity
		if m.New != nil {
			docQuestion := m.New.Ref.(*checklist.DocQuestion)
			for ai := range docQuestion.Answers {
				docAnswer := &docQuestion.Answers[ai]
				newAnswers = append(newAnswers, match.Entity{ExternalID: docAnswer.ID, Title: docAnswer.Value.Male, AltTitle: docAnswer.Value.Female, Ref: docAnswer})
			}
		}
		matches.Answers = append(matches.Answers, match.Match(match.KindAnswer, oldAnswers, newAnswers, match.DefaultThreshold)...)
	}

	return matches
}
