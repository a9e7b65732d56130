package app

import (
	"context"
	"database/sql"
	"sort"

	"checkwise/api/internal/store"
)

// memStore is an in-memory dataStore with the same observable behavior as
// the SQL store: sql.ErrNoRows on misses, ordered tree loads, current-row
// semantics on the response queries.
type memStore struct {
	checklists  map[string]store.Checklist
	sections    map[string]store.Section
	subsections map[string]store.Subsection
	groups      map[string]store.QuestionGroup
	questions   map[string]store.Question
	answers     map[string]store.Answer
	responses   map[string]store.Response
	history     []store.ResponseHistory
	versions    []store.ChecklistVersion

	nextHistoryID int64
}

func newMemStore() *memStore {
	return &memStore{
		checklists:    make(map[string]store.Checklist),
		sections:      make(map[string]store.Section),
		subsections:   make(map[string]store.Subsection),
		groups:        make(map[string]store.QuestionGroup),
		questions:     make(map[string]store.Question),
		answers:       make(map[string]store.Answer),
		responses:     make(map[string]store.Response),
		history:       make([]store.ResponseHistory, 0),
		versions:      make([]store.ChecklistVersion, 0),
		nextHistoryID: 1,
	}
}

func (m *memStore) GetChecklist(_ context.Context, id string) (store.Checklist, error) {
	item, ok := m.checklists[id]
	if !ok {
		return store.Checklist{}, sql.ErrNoRows
	}
	return item, nil
}

func (m *memStore) ListChecklists(_ context.Context) ([]store.Checklist, error) {
	items := make([]store.Checklist, 0, len(m.checklists))
	for _, item := range m.checklists {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *memStore) InsertChecklist(_ context.Context, item store.Checklist) error {
	m.checklists[item.ID] = item
	return nil
}

func (m *memStore) UpdateChecklistMeta(_ context.Context, item store.Checklist) error {
	if _, ok := m.checklists[item.ID]; !ok {
		return sql.ErrNoRows
	}
	m.checklists[item.ID] = item
	return nil
}

func (m *memStore) LoadTree(_ context.Context, checklistID string) (store.Tree, error) {
	root, ok := m.checklists[checklistID]
	if !ok {
		return store.Tree{}, sql.ErrNoRows
	}
	tree := store.Tree{Checklist: root}

	for _, section := range m.sections {
		if section.ChecklistID == checklistID {
			tree.Sections = append(tree.Sections, section)
		}
	}
	sort.Slice(tree.Sections, func(i, j int) bool { return tree.Sections[i].SortOrder < tree.Sections[j].SortOrder })

	sectionIDs := make(map[string]bool)
	for _, section := range tree.Sections {
		sectionIDs[section.ID] = true
	}
	for _, subsection := range m.subsections {
		if sectionIDs[subsection.SectionID] {
			tree.Subsections = append(tree.Subsections, subsection)
		}
	}
	sort.Slice(tree.Subsections, func(i, j int) bool { return tree.Subsections[i].SortOrder < tree.Subsections[j].SortOrder })

	subsectionIDs := make(map[string]bool)
	for _, subsection := range tree.Subsections {
		subsectionIDs[subsection.ID] = true
	}
	for _, group := range m.groups {
		if subsectionIDs[group.SubsectionID] {
			tree.Groups = append(tree.Groups, group)
		}
	}
	sort.Slice(tree.Groups, func(i, j int) bool { return tree.Groups[i].SortOrder < tree.Groups[j].SortOrder })

	groupIDs := make(map[string]bool)
	for _, group := range tree.Groups {
		groupIDs[group.ID] = true
	}
	for _, question := range m.questions {
		if groupIDs[question.GroupID] {
			tree.Questions = append(tree.Questions, question)
		}
	}
	sort.Slice(tree.Questions, func(i, j int) bool { return tree.Questions[i].SortOrder < tree.Questions[j].SortOrder })

	questionIDs := make(map[string]bool)
	for _, question := range tree.Questions {
		questionIDs[question.ID] = true
	}
	for _, answer := range m.answers {
		if questionIDs[answer.QuestionID] {
			tree.Answers = append(tree.Answers, answer)
		}
	}
	sort.Slice(tree.Answers, func(i, j int) bool { return tree.Answers[i].SortOrder < tree.Answers[j].SortOrder })

	return tree, nil
}

func (m *memStore) InsertSection(_ context.Context, item store.Section) error {
	m.sections[item.ID] = item
	return nil
}

func (m *memStore) UpdateSection(_ context.Context, item store.Section) error {
	m.sections[item.ID] = item
	return nil
}

func (m *memStore) DeleteSection(_ context.Context, id string) error {
	delete(m.sections, id)
	return nil
}

func (m *memStore) InsertSubsection(_ context.Context, item store.Subsection) error {
	m.subsections[item.ID] = item
	return nil
}

func (m *memStore) UpdateSubsection(_ context.Context, item store.Subsection) error {
	m.subsections[item.ID] = item
	return nil
}

func (m *memStore) DeleteSubsection(_ context.Context, id string) error {
	delete(m.subsections, id)
	return nil
}

func (m *memStore) InsertQuestionGroup(_ context.Context, item store.QuestionGroup) error {
	m.groups[item.ID] = item
	return nil
}

func (m *memStore) UpdateQuestionGroup(_ context.Context, item store.QuestionGroup) error {
	m.groups[item.ID] = item
	return nil
}

func (m *memStore) DeleteQuestionGroup(_ context.Context, id string) error {
	delete(m.groups, id)
	return nil
}

func (m *memStore) GetQuestion(_ context.Context, id string) (store.Question, error) {
	question, ok := m.questions[id]
	if !ok {
		return store.Question{}, sql.ErrNoRows
	}
	return question, nil
}

func (m *memStore) InsertQuestion(_ context.Context, item store.Question) error {
	m.questions[item.ID] = item
	return nil
}

func (m *memStore) UpdateQuestion(_ context.Context, item store.Question) error {
	m.questions[item.ID] = item
	return nil
}

func (m *memStore) DeleteQuestion(_ context.Context, id string) error {
	delete(m.questions, id)
	return nil
}

func (m *memStore) InsertAnswer(_ context.Context, item store.Answer) error {
	m.answers[item.ID] = item
	return nil
}

func (m *memStore) UpdateAnswer(_ context.Context, item store.Answer) error {
	m.answers[item.ID] = item
	return nil
}

func (m *memStore) DeleteAnswer(_ context.Context, id string) error {
	delete(m.answers, id)
	return nil
}

func (m *memStore) ListAnswersByQuestion(_ context.Context, questionID string) ([]store.Answer, error) {
	items := make([]store.Answer, 0)
	for _, answer := range m.answers {
		if answer.QuestionID == questionID {
			items = append(items, answer)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SortOrder < items[j].SortOrder })
	return items, nil
}

func (m *memStore) checklistOf(questionID string) string {
	question, ok := m.questions[questionID]
	if !ok {
		return ""
	}
	group, ok := m.groups[question.GroupID]
	if !ok {
		return ""
	}
	subsection, ok := m.subsections[group.SubsectionID]
	if !ok {
		return ""
	}
	section, ok := m.sections[subsection.SectionID]
	if !ok {
		return ""
	}
	return section.ChecklistID
}

func (m *memStore) CurrentResponseCountForQuestion(_ context.Context, questionID string) (int, error) {
	count := 0
	for _, response := range m.responses {
		if response.IsCurrent && response.QuestionID != nil && *response.QuestionID == questionID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) CurrentResponseCountForGroup(ctx context.Context, groupID string) (int, error) {
	count := 0
	for _, question := range m.questions {
		if question.GroupID != groupID {
			continue
		}
		n, _ := m.CurrentResponseCountForQuestion(ctx, question.ID)
		count += n
	}
	return count, nil
}

func (m *memStore) CurrentResponseCountForSubsection(ctx context.Context, subsectionID string) (int, error) {
	count := 0
	for _, group := range m.groups {
		if group.SubsectionID != subsectionID {
			continue
		}
		n, _ := m.CurrentResponseCountForGroup(ctx, group.ID)
		count += n
	}
	return count, nil
}

func (m *memStore) CurrentResponseCountForSection(ctx context.Context, sectionID string) (int, error) {
	count := 0
	for _, subsection := range m.subsections {
		if subsection.SectionID != sectionID {
			continue
		}
		n, _ := m.CurrentResponseCountForSubsection(ctx, subsection.ID)
		count += n
	}
	return count, nil
}

func (m *memStore) CountCurrentResponses(_ context.Context, questionID string) (int, int, error) {
	count := 0
	subjects := make(map[string]bool)
	for _, response := range m.responses {
		if response.IsCurrent && response.QuestionID != nil && *response.QuestionID == questionID {
			count++
			subjects[response.SubjectID] = true
		}
	}
	return count, len(subjects), nil
}

func (m *memStore) CountCurrentResponsesForChecklist(_ context.Context, checklistID string) (int, error) {
	count := 0
	for _, response := range m.responses {
		if response.IsCurrent && response.QuestionID != nil && m.checklistOf(*response.QuestionID) == checklistID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) GetResponse(_ context.Context, id string) (store.Response, error) {
	response, ok := m.responses[id]
	if !ok {
		return store.Response{}, sql.ErrNoRows
	}
	return response, nil
}

func (m *memStore) GetCurrentResponse(_ context.Context, subjectID, questionID string) (*store.Response, error) {
	for _, response := range m.responses {
		if response.IsCurrent && response.SubjectID == subjectID && response.QuestionID != nil && *response.QuestionID == questionID {
			found := response
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListResponsesByQuestion(_ context.Context, questionID string) ([]store.Response, error) {
	items := make([]store.Response, 0)
	for _, response := range m.responses {
		if response.QuestionID != nil && *response.QuestionID == questionID {
			items = append(items, response)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *memStore) ListResponsesBySubject(_ context.Context, subjectID, checklistID string) ([]store.Response, error) {
	items := make([]store.Response, 0)
	for _, response := range m.responses {
		if !response.IsCurrent || response.SubjectID != subjectID || response.QuestionID == nil {
			continue
		}
		if checklistID != "" && m.checklistOf(*response.QuestionID) != checklistID {
			continue
		}
		items = append(items, response)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *memStore) InsertResponse(_ context.Context, item store.Response) error {
	m.responses[item.ID] = item
	return nil
}

func (m *memStore) UpdateResponseContent(_ context.Context, id string, answerID *string, answerText, sourceType, comment string, version int) error {
	response, ok := m.responses[id]
	if !ok {
		return sql.ErrNoRows
	}
	response.AnswerID = answerID
	response.AnswerText = answerText
	response.SourceType = sourceType
	response.Comment = comment
	response.Version = version
	m.responses[id] = response
	return nil
}

func (m *memStore) UpdateResponseQuestion(_ context.Context, id, questionID string) error {
	response, ok := m.responses[id]
	if !ok {
		return sql.ErrNoRows
	}
	response.QuestionID = &questionID
	m.responses[id] = response
	return nil
}

func (m *memStore) SetResponseCurrent(_ context.Context, id string, current bool) error {
	response, ok := m.responses[id]
	if !ok {
		return sql.ErrNoRows
	}
	response.IsCurrent = current
	m.responses[id] = response
	return nil
}

func (m *memStore) DeleteResponse(_ context.Context, id string) error {
	delete(m.responses, id)
	kept := m.history[:0]
	for _, entry := range m.history {
		if entry.ResponseID != id {
			kept = append(kept, entry)
		}
	}
	m.history = kept
	return nil
}

func (m *memStore) InsertResponseHistory(_ context.Context, entry store.ResponseHistory) error {
	entry.ID = m.nextHistoryID
	m.nextHistoryID++
	m.history = append(m.history, entry)
	return nil
}

func (m *memStore) GetResponseHistoryEntry(_ context.Context, id int64) (store.ResponseHistory, error) {
	for _, entry := range m.history {
		if entry.ID == id {
			return entry, nil
		}
	}
	return store.ResponseHistory{}, sql.ErrNoRows
}

func (m *memStore) ListResponseHistory(_ context.Context, responseID string) ([]store.ResponseHistory, error) {
	items := make([]store.ResponseHistory, 0)
	for _, entry := range m.history {
		if entry.ResponseID == responseID {
			items = append(items, entry)
		}
	}
	return items, nil
}

func (m *memStore) InsertChecklistVersion(_ context.Context, checklistID string, version int, fileHash string) error {
	for i := range m.versions {
		if m.versions[i].ChecklistID == checklistID {
			m.versions[i].IsCurrent = false
		}
	}
	m.versions = append(m.versions, store.ChecklistVersion{
		ID:          int64(len(m.versions) + 1),
		ChecklistID: checklistID,
		Version:     version,
		FileHash:    fileHash,
		IsCurrent:   true,
	})
	return nil
}

func (m *memStore) ListChecklistVersions(_ context.Context, checklistID string) ([]store.ChecklistVersion, error) {
	items := make([]store.ChecklistVersion, 0)
	for _, version := range m.versions {
		if version.ChecklistID == checklistID {
			items = append(items, version)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Version > items[j].Version })
	return items, nil
}

func (m *memStore) Ping(_ context.Context) error {
	return nil
}

func (m *memStore) historyFor(responseID string) []store.ResponseHistory {
	items := make([]store.ResponseHistory, 0)
	for _, entry := range m.history {
		if entry.ResponseID == responseID {
			items = append(items, entry)
		}
	}
	return items
}

func (m *memStore) questionByExternalID(externalID string) (store.Question, bool) {
	for _, question := range m.questions {
		if question.ExternalID == externalID {
			return question, true
		}
	}
	return store.Question{}, false
}
