package migration

import (
	"context"
	"fmt"

	"checkwise/api/internal/checklist"
	"checkwise/api/internal/match"
	"checkwise/api/internal/store"
	"checkwise/api/internal/util"
)

// Matches carries one match set per tree level, sections down to answers.
type Matches struct {
	Sections    []match.EntityMatch
	Subsections []match.EntityMatch
	Groups      []match.EntityMatch
	Questions   []match.EntityMatch
	Answers     []match.EntityMatch
}

// LevelStats counts what Apply did at one tree level.
type LevelStats struct {
	Updated int `json:"updated"`
	Added   int `json:"added"`
	Deleted int `json:"deleted"`
}

type UpdateStats struct {
	Sections    LevelStats `json:"sections"`
	Subsections LevelStats `json:"subsections"`
	Groups      LevelStats `json:"groups"`
	Questions   LevelStats `json:"questions"`
	Answers     LevelStats `json:"answers"`
}

type applierStore interface {
	UpdateChecklistMeta(ctx context.Context, item store.Checklist) error
	InsertChecklistVersion(ctx context.Context, checklistID string, version int, fileHash string) error

	InsertSection(ctx context.Context, item store.Section) error
	UpdateSection(ctx context.Context, item store.Section) error
	DeleteSection(ctx context.Context, sectionID string) error
	InsertSubsection(ctx context.Context, item store.Subsection) error
	UpdateSubsection(ctx context.Context, item store.Subsection) error
	DeleteSubsection(ctx context.Context, subsectionID string) error
	InsertQuestionGroup(ctx context.Context, item store.QuestionGroup) error
	UpdateQuestionGroup(ctx context.Context, item store.QuestionGroup) error
	DeleteQuestionGroup(ctx context.Context, groupID string) error
	InsertQuestion(ctx context.Context, item store.Question) error
	UpdateQuestion(ctx context.Context, item store.Question) error
	DeleteQuestion(ctx context.Context, questionID string) error
	InsertAnswer(ctx context.Context, item store.Answer) error
	UpdateAnswer(ctx context.Context, item store.Answer) error
	DeleteAnswer(ctx context.Context, answerID string) error

	CurrentResponseCountForQuestion(ctx context.Context, questionID string) (int, error)
	CurrentResponseCountForGroup(ctx context.Context, groupID string) (int, error)
	CurrentResponseCountForSubsection(ctx context.Context, subsectionID string) (int, error)
	CurrentResponseCountForSection(ctx context.Context, sectionID string) (int, error)
}

// Applier writes a resolved match set back onto the persisted tree. Matched
// nodes are mutated in place so their internal ids — and with them every
// response foreign key — stay valid; only NEW nodes get fresh ids.
type Applier struct {
	store applierStore
}

func NewApplier(s applierStore) Applier {
	return Applier{store: s}
}

// Apply walks the candidate document top-down, updating matched nodes and
// inserting new ones, then removes deleted nodes bottom-up. It must run
// after the Migration Executor: a deleted question that still has current
// responses is refused, not orphaned. Finally the checklist metadata and
// version row are written.
func (a Applier) Apply(ctx context.Context, tree store.Tree, doc *checklist.Document, matches Matches, fileHash string) (UpdateStats, error) {
	var stats UpdateStats

	oldSections := make(map[*checklist.DocSection]store.Section)
	oldSubsections := make(map[*checklist.DocSubsection]store.Subsection)
	oldGroups := make(map[*checklist.DocGroup]store.QuestionGroup)
	oldQuestions := make(map[*checklist.DocQuestion]store.Question)
	oldAnswers := make(map[*checklist.DocAnswer]store.Answer)

	for _, m := range matches.Sections {
		if m.Type == match.TypeExact || m.Type == match.TypeSimilar {
			docSection, ok := m.New.Ref.(*checklist.DocSection)
			oldSection, ok2 := m.Old.Ref.(store.Section)
			if !ok || !ok2 {
				return UpdateStats{}, fmt.Errorf("section match %s carries wrong node types", m.ExternalID)
			}
			oldSections[docSection] = oldSection
		}
	}
	for _, m := range matches.Subsections {
		if m.Type == match.TypeExact || m.Type == match.TypeSimilar {
			docSubsection, ok := m.New.Ref.(*checklist.DocSubsection)
			oldSubsection, ok2 := m.Old.Ref.(store.Subsection)
			if !ok || !ok2 {
				return UpdateStats{}, fmt.Errorf("subsection match %s carries wrong node types", m.ExternalID)
			}
			oldSubsections[docSubsection] = oldSubsection
		}
	}
	for _, m := range matches.Groups {
		if m.Type == match.TypeExact || m.Type == match.TypeSimilar {
			docGroup, ok := m.New.Ref.(*checklist.DocGroup)
			oldGroup, ok2 := m.Old.Ref.(store.QuestionGroup)
			if !ok || !ok2 {
				return UpdateStats{}, fmt.Errorf("group match %s carries wrong node types", m.ExternalID)
			}
			oldGroups[docGroup] = oldGroup
		}
	}
	for _, m := range matches.Questions {
		if m.Type == match.TypeExact || m.Type == match.TypeSimilar {
			docQuestion, ok := m.New.Ref.(*checklist.DocQuestion)
			oldQuestion, ok2 := m.Old.Ref.(store.Question)
			if !ok || !ok2 {
				return UpdateStats{}, fmt.Errorf("question match %s carries wrong node types", m.ExternalID)
			}
			oldQuestions[docQuestion] = oldQuestion
		}
	}
	for _, m := range matches.Answers {
		if m.Type == match.TypeExact || m.Type == match.TypeSimilar {
			docAnswer, ok := m.New.Ref.(*checklist.DocAnswer)
			oldAnswer, ok2 := m.Old.Ref.(store.Answer)
			if !ok || !ok2 {
				return UpdateStats{}, fmt.Errorf("answer match %s carries wrong node types", m.ExternalID)
			}
			oldAnswers[docAnswer] = oldAnswer
		}
	}

	// Top-down update/insert pass. Parent internal ids are resolved while
	// walking, so a new question can land under a section inserted moments
	// before.
	for si := range doc.Sections {
		docSection := &doc.Sections[si]
		sectionID, err := a.upsertSection(ctx, tree.Checklist.ID, docSection, si, oldSections, &stats)
		if err != nil {
			return UpdateStats{}, err
		}
		for ssi := range docSection.Subsections {
			docSubsection := &docSection.Subsections[ssi]
			subsectionID, err := a.upsertSubsection(ctx, sectionID, docSubsection, ssi, oldSubsections, &stats)
			if err != nil {
				return UpdateStats{}, err
			}
			for gi := range docSubsection.Groups {
				docGroup := &docSubsection.Groups[gi]
				groupID, err := a.upsertGroup(ctx, subsectionID, docGroup, gi, oldGroups, &stats)
				if err != nil {
					return UpdateStats{}, err
				}
				for qi := range docGroup.Questions {
					docQuestion := &docGroup.Questions[qi]
					questionID, err := a.upsertQuestion(ctx, groupID, docQuestion, qi, oldQuestions, &stats)
					if err != nil {
						return UpdateStats{}, err
					}
					for ai := range docQuestion.Answers {
						docAnswer := &docQuestion.Answers[ai]
						if err := a.upsertAnswer(ctx, questionID, docAnswer, ai, oldAnswers, &stats); err != nil {
							return UpdateStats{}, err
						}
					}
				}
			}
		}
	}

	if err := a.deleteRemoved(ctx, matches, &stats); err != nil {
		return UpdateStats{}, err
	}

	checklistRow := tree.Checklist
	checklistRow.Title = doc.Title
	checklistRow.Description = doc.Description
	checklistRow.Goal = doc.Goal
	checklistRow.Version = tree.Checklist.Version + 1
	checklistRow.FileHash = fileHash
	if err := a.store.UpdateChecklistMeta(ctx, checklistRow); err != nil {
		return UpdateStats{}, err
	}
	if err := a.store.InsertChecklistVersion(ctx, checklistRow.ID, checklistRow.Version, fileHash); err != nil {
		return UpdateStats{}, err
	}

	return stats, nil
}

func (a Applier) upsertSection(ctx context.Context, checklistID string, docSection *checklist.DocSection, order int, matched map[*checklist.DocSection]store.Section, stats *UpdateStats) (string, error) {
	if oldSection, ok := matched[docSection]; ok {
		oldSection.ChecklistID = checklistID
		oldSection.ExternalID = docSection.ID
		oldSection.Title = docSection.Title
		oldSection.Number = docSection.Number
		oldSection.SortOrder = order
		if err := a.store.UpdateSection(ctx, oldSection); err != nil {
			return "", err
		}
		stats.Sections.Updated++
		return oldSection.ID, nil
	}
	section := store.Section{
		ID:          util.NewID("sec"),
		ChecklistID: checklistID,
		ExternalID:  docSection.ID,
		Title:       docSection.Title,
		Number:      docSection.Number,
		SortOrder:   order,
	}
	if err := a.store.InsertSection(ctx, section); err != nil {
		return "", err
	}
	stats.Sections.Added++
	return section.ID, nil
}

func (a Applier) upsertSubsection(ctx context.Context, sectionID string, docSubsection *checklist.DocSubsection, order int, matched map[*checklist.DocSubsection]store.Subsection, stats *UpdateStats) (string, error) {
	if oldSubsection, ok := matched[docSubsection]; ok {
		oldSubsection.SectionID = sectionID
		oldSubsection.ExternalID = docSubsection.ID
		oldSubsection.Title = docSubsection.Title
		oldSubsection.Number = docSubsection.Number
		oldSubsection.SortOrder = order
		if err := a.store.UpdateSubsection(ctx, oldSubsection); err != nil {
			return "", err
		}
		stats.Subsections.Updated++
		return oldSubsection.ID, nil
	}
	subsection := store.Subsection{
		ID:         util.NewID("sub"),
		SectionID:  sectionID,
		ExternalID: docSubsection.ID,
		Title:      docSubsection.Title,
		Number:     docSubsection.Number,
		SortOrder:  order,
	}
	if err := a.store.InsertSubsection(ctx, subsection); err != nil {
		return "", err
	}
	stats.Subsections.Added++
	return subsection.ID, nil
}

func (a Applier) upsertGroup(ctx context.Context, subsectionID string, docGroup *checklist.DocGroup, order int, matched map[*checklist.DocGroup]store.QuestionGroup, stats *UpdateStats) (string, error) {
	if oldGroup, ok := matched[docGroup]; ok {
		oldGroup.SubsectionID = subsectionID
		oldGroup.ExternalID = docGroup.ID
		oldGroup.Title = docGroup.Title
		oldGroup.SortOrder = order
		if err := a.store.UpdateQuestionGroup(ctx, oldGroup); err != nil {
			return "", err
		}
		stats.Groups.Updated++
		return oldGroup.ID, nil
	}
	group := store.QuestionGroup{
		ID:           util.NewID("grp"),
		SubsectionID: subsectionID,
		ExternalID:   docGroup.ID,
		Title:        docGroup.Title,
		SortOrder:    order,
	}
	if err := a.store.InsertQuestionGroup(ctx, group); err != nil {
		return "", err
	}
	stats.Groups.Added++
	return group.ID, nil
}

func (a Applier) upsertQuestion(ctx context.Context, groupID string, docQuestion *checklist.DocQuestion, order int, matched map[*checklist.DocQuestion]store.Question, stats *UpdateStats) (string, error) {
	if oldQuestion, ok := matched[docQuestion]; ok {
		oldQuestion.GroupID = groupID
		oldQuestion.ExternalID = docQuestion.ID
		oldQuestion.Text = docQuestion.Text
		oldQuestion.Hint = docQuestion.Hint
		oldQuestion.AnswerType = docQuestion.AnswerType
		oldQuestion.SortOrder = order
		if err := a.store.UpdateQuestion(ctx, oldQuestion); err != nil {
			return "", err
		}
		stats.Questions.Updated++
		return oldQuestion.ID, nil
	}
	question := store.Question{
		ID:         util.NewID("qst"),
		GroupID:    groupID,
		ExternalID: docQuestion.ID,
		Text:       docQuestion.Text,
		Hint:       docQuestion.Hint,
		AnswerType: docQuestion.AnswerType,
		SortOrder:  order,
	}
	if err := a.store.InsertQuestion(ctx, question); err != nil {
		return "", err
	}
	stats.Questions.Added++
	return question.ID, nil
}

func (a Applier) upsertAnswer(ctx context.Context, questionID string, docAnswer *checklist.DocAnswer, order int, matched map[*checklist.DocAnswer]store.Answer, stats *UpdateStats) error {
	if oldAnswer, ok := matched[docAnswer]; ok {
		oldAnswer.QuestionID = questionID
		oldAnswer.ExternalID = docAnswer.ID
		oldAnswer.ValueMale = docAnswer.Value.Male
		oldAnswer.ValueFemale = docAnswer.Value.Female
		oldAnswer.ExportedMale = docAnswer.ExportedValue.Male
		oldAnswer.ExportedFemale = docAnswer.ExportedValue.Female
		oldAnswer.Hint = docAnswer.Hint
		oldAnswer.SortOrder = order
		if err := a.store.UpdateAnswer(ctx, oldAnswer); err != nil {
			return err
		}
		stats.Answers.Updated++
		return nil
	}
	answer := store.Answer{
		ID:             util.NewID("ans"),
		QuestionID:     questionID,
		ExternalID:     docAnswer.ID,
		ValueMale:      docAnswer.Value.Male,
		ValueFemale:    docAnswer.Value.Female,
		ExportedMale:   docAnswer.ExportedValue.Male,
		ExportedFemale: docAnswer.ExportedValue.Female,
		Hint:           docAnswer.Hint,
		SortOrder:      order,
	}
	if err := a.store.InsertAnswer(ctx, answer); err != nil {
		return err
	}
	stats.Answers.Added++
	return nil
}

// deleteRemoved runs bottom-up so no delete ever has to cascade through a
// child that was reparented during the update pass. Every level is guarded
// against current responses that were not resolved first.
func (a Applier) deleteRemoved(ctx context.Context, matches Matches, stats *UpdateStats) error {
	for _, m := range matches.Answers {
		if m.Type != match.TypeDeleted {
			continue
		}
		oldAnswer, ok := m.Old.Ref.(store.Answer)
		if !ok {
			return fmt.Errorf("answer match %s carries wrong node type", m.ExternalID)
		}
		if err := a.store.DeleteAnswer(ctx, oldAnswer.ID); err != nil {
			return err
		}
		stats.Answers.Deleted++
	}

	for _, m := range matches.Questions {
		if m.Type != match.TypeDeleted {
			continue
		}
		oldQuestion, ok := m.Old.Ref.(store.Question)
		if !ok {
			return fmt.Errorf("question match %s carries wrong node type", m.ExternalID)
		}
		count, err := a.store.CurrentResponseCountForQuestion(ctx, oldQuestion.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("question %s still has %d current responses, run response migration first", oldQuestion.ID, count)
		}
		if err := a.store.DeleteQuestion(ctx, oldQuestion.ID); err != nil {
			return err
		}
		stats.Questions.Deleted++
	}

	for _, m := range matches.Groups {
		if m.Type != match.TypeDeleted {
			continue
		}
		oldGroup, ok := m.Old.Ref.(store.QuestionGroup)
		if !ok {
			return fmt.Errorf("group match %s carries wrong node type", m.ExternalID)
		}
		count, err := a.store.CurrentResponseCountForGroup(ctx, oldGroup.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("question group %s still has %d current responses, run response migration first", oldGroup.ID, count)
		}
		if err := a.store.DeleteQuestionGroup(ctx, oldGroup.ID); err != nil {
			return err
		}
		stats.Groups.Deleted++
	}

	for _, m := range matches.Subsections {
		if m.Type != match.TypeDeleted {
			continue
		}
		oldSubsection, ok := m.Old.Ref.(store.Subsection)
		if !ok {
			return fmt.Errorf("subsection match %s carries wrong node type", m.ExternalID)
		}
		count, err := a.store.CurrentResponseCountForSubsection(ctx, oldSubsection.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("subsection %s still has %d current responses, run response migration first", oldSubsection.ID, count)
		}
		if err := a.store.DeleteSubsection(ctx, oldSubsection.ID); err != nil {
			return err
		}
		stats.Subsections.Deleted++
	}

	for _, m := range matches.Sections {
		if m.Type != match.TypeDeleted {
			continue
		}
		oldSection, ok := m.Old.Ref.(store.Section)
		if !ok {
			return fmt.Errorf("section match %s carries wrong node type", m.ExternalID)
		}
		count, err := a.store.CurrentResponseCountForSection(ctx, oldSection.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("section %s still has %d current responses, run response migration first", oldSection.ID, count)
		}
		if err := a.store.DeleteSection(ctx, oldSection.ID); err != nil {
			return err
		}
		stats.Sections.Deleted++
	}

	return nil
}
