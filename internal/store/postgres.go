package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) GetChecklist(ctx context.Context, checklistID string) (Checklist, error) {
	var item Checklist
	err := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, title, description, goal, version, file_hash, created_at, updated_at
		FROM checklists
		WHERE id=$1
	`, checklistID).Scan(
		&item.ID,
		&item.ExternalID,
		&item.Title,
		&item.Description,
		&item.Goal,
		&item.Version,
		&item.FileHash,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Checklist{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListChecklists(ctx context.Context) ([]Checklist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, external_id, title, description, goal, version, file_hash, created_at, updated_at
		FROM checklists
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list checklists: %w", err)
	}
	defer rows.Close()

	items := make([]Checklist, 0)
	for rows.Next() {
		var item Checklist
		if err := rows.Scan(
			&item.ID,
			&item.ExternalID,
			&item.Title,
			&item.Description,
			&item.Goal,
			&item.Version,
			&item.FileHash,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan checklist: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checklists: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertChecklist(ctx context.Context, item Checklist) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checklists (id, external_id, title, description, goal, version, file_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.ExternalID, item.Title, item.Description, item.Goal, item.Version, item.FileHash)
	if err != nil {
		return fmt.Errorf("insert checklist: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateChecklistMeta(ctx context.Context, item Checklist) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE checklists
		SET title=$2, description=$3, goal=$4, version=$5, file_hash=$6, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Title, item.Description, item.Goal, item.Version, item.FileHash)
	if err != nil {
		return fmt.Errorf("update checklist meta: %w", err)
	}
	return nil
}

// LoadTree reads the whole persisted tree for one checklist, each level
// flattened in document order.
func (s *PostgresStore) LoadTree(ctx context.Context, checklistID string) (Tree, error) {
	checklist, err := s.GetChecklist(ctx, checklistID)
	if err != nil {
		return Tree{}, err
	}
	tree := Tree{Checklist: checklist}

	sectionRows, err := s.db.QueryContext(ctx, `
		SELECT id, checklist_id, external_id, title, number_label, sort_order
		FROM sections
		WHERE checklist_id=$1
		ORDER BY sort_order ASC, id ASC
	`, checklistID)
	if err != nil {
		return Tree{}, fmt.Errorf("load sections: %w", err)
	}
	defer sectionRows.Close()
	for sectionRows.Next() {
		var item Section
		if err := sectionRows.Scan(&item.ID, &item.ChecklistID, &item.ExternalID, &item.Title, &item.Number, &item.SortOrder); err != nil {
			return Tree{}, fmt.Errorf("scan section: %w", err)
		}
		tree.Sections = append(tree.Sections, item)
	}
	if err := sectionRows.Err(); err != nil {
		return Tree{}, fmt.Errorf("iterate sections: %w", err)
	}

	subsectionRows, err := s.db.QueryContext(ctx, `
		SELECT ss.id, ss.section_id, ss.external_id, ss.title, ss.number_label, ss.sort_order
		FROM subsections ss
		JOIN sections s ON s.id = ss.section_id
		WHERE s.checklist_id=$1
		ORDER BY s.sort_order ASC, ss.sort_order ASC, ss.id ASC
	`, checklistID)
	if err != nil {
		return Tree{}, fmt.Errorf("load subsections: %w", err)
	}
	defer subsectionRows.Close()
	for subsectionRows.Next() {
		var item Subsection
		if err := subsectionRows.Scan(&item.ID, &item.SectionID, &item.ExternalID, &item.Title, &item.Number, &item.SortOrder); err != nil {
			return Tree{}, fmt.Errorf("scan subsection: %w", err)
		}
		tree.Subsections = append(tree.Subsections, item)
	}
	if err := subsectionRows.Err(); err != nil {
		return Tree{}, fmt.Errorf("iterate subsections: %w", err)
	}

	groupRows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.subsection_id, g.external_id, g.title, g.sort_order
		FROM question_groups g
		JOIN subsections ss ON ss.id = g.subsection_id
		JOIN sections s ON s.id = ss.section_id
		WHERE s.checklist_id=$1
		ORDER BY s.sort_order ASC, ss.sort_order ASC, g.sort_order ASC, g.id ASC
	`, checklistID)
	if err != nil {
		return Tree{}, fmt.Errorf("load question groups: %w", err)
	}
	defer groupRows.Close()
	for groupRows.Next() {
		var item QuestionGroup
		if err := groupRows.Scan(&item.ID, &item.SubsectionID, &item.ExternalID, &item.Title, &item.SortOrder); err != nil {
			return Tree{}, fmt.Errorf("scan question group: %w", err)
		}
		tree.Groups = append(tree.Groups, item)
	}
	if err := groupRows.Err(); err != nil {
		return Tree{}, fmt.Errorf("iterate question groups: %w", err)
	}

	questionRows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.group_id, q.external_id, q.body, q.hint, q.answer_type, q.sort_order
		FROM questions q
		JOIN question_groups g ON g.id = q.group_id
		JOIN subsections ss ON ss.id = g.subsection_id
		JOIN sections s ON s.id = ss.section_id
		WHERE s.checklist_id=$1
		ORDER BY s.sort_order ASC, ss.sort_order ASC, g.sort_order ASC, q.sort_order ASC, q.id ASC
	`, checklistID)
	if err != nil {
		return Tree{}, fmt.Errorf("load questions: %w", err)
	}
	defer questionRows.Close()
	for questionRows.Next() {
		var item Question
		if err := questionRows.Scan(&item.ID, &item.GroupID, &item.ExternalID, &item.Text, &item.Hint, &item.AnswerType, &item.SortOrder); err != nil {
			return Tree{}, fmt.Errorf("scan question: %w", err)
		}
		tree.Questions = append(tree.Questions, item)
	}
	if err := questionRows.Err(); err != nil {
		return Tree{}, fmt.Errorf("iterate questions: %w", err)
	}

	answerRows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.question_id, a.external_id, a.value_male, a.value_female, a.exported_male, a.exported_female, a.hint, a.sort_order
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		JOIN question_groups g ON g.id = q.group_id
		JOIN subsections ss ON ss.id = g.subsection_id
		JOIN sections s ON s.id = ss.section_id
		WHERE s.checklist_id=$1
		ORDER BY q.id ASC, a.sort_order ASC, a.id ASC
	`, checklistID)
	if err != nil {
		return Tree{}, fmt.Errorf("load answers: %w", err)
	}
	defer answerRows.Close()
	for answerRows.Next() {
		var item Answer
		if err := answerRows.Scan(&item.ID, &item.QuestionID, &item.ExternalID, &item.ValueMale, &item.ValueFemale, &item.ExportedMale, &item.ExportedFemale, &item.Hint, &item.SortOrder); err != nil {
			return Tree{}, fmt.Errorf("scan answer: %w", err)
		}
		tree.Answers = append(tree.Answers, item)
	}
	if err := answerRows.Err(); err != nil {
		return Tree{}, fmt.Errorf("iterate answers: %w", err)
	}

	return tree, nil
}

func (s *PostgresStore) InsertSection(ctx context.Context, item Section) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sections (id, checklist_id, external_id, title, number_label, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.ChecklistID, item.ExternalID, item.Title, item.Number, item.SortOrder)
	if err != nil {
		return fmt.Errorf("insert section: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSection(ctx context.Context, item Section) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sections
		SET checklist_id=$2, external_id=$3, title=$4, number_label=$5, sort_order=$6
		WHERE id=$1
	`, item.ID, item.ChecklistID, item.ExternalID, item.Title, item.Number, item.SortOrder)
	if err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSection(ctx context.Context, sectionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sections WHERE id=$1`, sectionID); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertSubsection(ctx context.Context, item Subsection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subsections (id, section_id, external_id, title, number_label, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.SectionID, item.ExternalID, item.Title, item.Number, item.SortOrder)
	if err != nil {
		return fmt.Errorf("insert subsection: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSubsection(ctx context.Context, item Subsection) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE subsections
		SET section_id=$2, external_id=$3, title=$4, number_label=$5, sort_order=$6
		WHERE id=$1
	`, item.ID, item.SectionID, item.ExternalID, item.Title, item.Number, item.SortOrder)
	if err != nil {
		return fmt.Errorf("update subsection: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSubsection(ctx context.Context, subsectionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM subsections WHERE id=$1`, subsectionID); err != nil {
		return fmt.Errorf("delete subsection: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertQuestionGroup(ctx context.Context, item QuestionGroup) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO question_groups (id, subsection_id, external_id, title, sort_order)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.SubsectionID, item.ExternalID, item.Title, item.SortOrder)
	if err != nil {
		return fmt.Errorf("insert question group: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateQuestionGroup(ctx context.Context, item QuestionGroup) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE question_groups
		SET subsection_id=$2, external_id=$3, title=$4, sort_order=$5
		WHERE id=$1
	`, item.ID, item.SubsectionID, item.ExternalID, item.Title, item.SortOrder)
	if err != nil {
		return fmt.Errorf("update question group: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteQuestionGroup(ctx context.Context, groupID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM question_groups WHERE id=$1`, groupID); err != nil {
		return fmt.Errorf("delete question group: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetQuestion(ctx context.Context, questionID string) (Question, error) {
	var item Question
	err := s.db.QueryRowContext(ctx, `
		SELECT id, group_id, external_id, body, hint, answer_type, sort_order
		FROM questions
		WHERE id=$1
	`, questionID).Scan(&item.ID, &item.GroupID, &item.ExternalID, &item.Text, &item.Hint, &item.AnswerType, &item.SortOrder)
	if err != nil {
		return Question{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertQuestion(ctx context.Context, item Question) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO questions (id, group_id, external_id, body, hint, answer_type, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.GroupID, item.ExternalID, item.Text, item.Hint, item.AnswerType, item.SortOrder)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateQuestion(ctx context.Context, item Question) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET group_id=$2, external_id=$3, body=$4, hint=$5, answer_type=$6, sort_order=$7
		WHERE id=$1
	`, item.ID, item.GroupID, item.ExternalID, item.Text, item.Hint, item.AnswerType, item.SortOrder)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteQuestion(ctx context.Context, questionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, questionID); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertAnswer(ctx context.Context, item Answer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO answers (id, question_id, external_id, value_male, value_female, exported_male, exported_female, hint, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.QuestionID, item.ExternalID, item.ValueMale, item.ValueFemale, item.ExportedMale, item.ExportedFemale, item.Hint, item.SortOrder)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAnswer(ctx context.Context, item Answer) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE answers
		SET question_id=$2, external_id=$3, value_male=$4, value_female=$5, exported_male=$6, exported_female=$7, hint=$8, sort_order=$9
		WHERE id=$1
	`, item.ID, item.QuestionID, item.ExternalID, item.ValueMale, item.ValueFemale, item.ExportedMale, item.ExportedFemale, item.Hint, item.SortOrder)
	if err != nil {
		return fmt.Errorf("update answer: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAnswer(ctx context.Context, answerID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM answers WHERE id=$1`, answerID); err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnswersByQuestion(ctx context.Context, questionID string) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question_id, external_id, value_male, value_female, exported_male, exported_female, hint, sort_order
		FROM answers
		WHERE question_id=$1
		ORDER BY sort_order ASC, id ASC
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	items := make([]Answer, 0)
	for rows.Next() {
		var item Answer
		if err := rows.Scan(&item.ID, &item.QuestionID, &item.ExternalID, &item.ValueMale, &item.ValueFemale, &item.ExportedMale, &item.ExportedFemale, &item.Hint, &item.SortOrder); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CurrentResponseCountForQuestion(ctx context.Context, questionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM responses WHERE question_id=$1 AND is_current
	`, questionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count current responses for question: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CurrentResponseCountForGroup(ctx context.Context, groupID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM responses r
		JOIN questions q ON q.id = r.question_id
		WHERE q.group_id=$1 AND r.is_current
	`, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count current responses for group: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CurrentResponseCountForSubsection(ctx context.Context, subsectionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM responses r
		JOIN questions q ON q.id = r.question_id
		JOIN question_groups g ON g.id = q.group_id
		WHERE g.subsection_id=$1 AND r.is_current
	`, subsectionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count current responses for subsection: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CurrentResponseCountForSection(ctx context.Context, sectionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM responses r
		JOIN questions q ON q.id = r.question_id
		JOIN question_groups g ON g.id = q.group_id
		JOIN subsections ss ON ss.id = g.subsection_id
		WHERE ss.section_id=$1 AND r.is_current
	`, sectionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count current responses for section: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) GetResponse(ctx context.Context, responseID string) (Response, error) {
	var item Response
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject_id, question_id, answer_id, answer_text, source_type, comment, version, is_current, created_at, updated_at
		FROM responses
		WHERE id=$1
	`, responseID).Scan(
		&item.ID,
		&item.SubjectID,
		&item.QuestionID,
		&item.AnswerID,
		&item.AnswerText,
		&item.SourceType,
		&item.Comment,
		&item.Version,
		&item.IsCurrent,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Response{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetCurrentResponse(ctx context.Context, subjectID, questionID string) (*Response, error) {
	var item Response
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject_id, question_id, answer_id, answer_text, source_type, comment, version, is_current, created_at, updated_at
		FROM responses
		WHERE subject_id=$1 AND question_id=$2 AND is_current
	`, subjectID, questionID).Scan(
		&item.ID,
		&item.SubjectID,
		&item.QuestionID,
		&item.AnswerID,
		&item.AnswerText,
		&item.SourceType,
		&item.Comment,
		&item.Version,
		&item.IsCurrent,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get current response: %w", err)
	}
	return &item, nil
}

// ListResponsesByQuestion returns every response referencing the question,
// archived rows included, so migration re-runs see the same row set.
func (s *PostgresStore) ListResponsesByQuestion(ctx context.Context, questionID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, question_id, answer_id, answer_text, source_type, comment, version, is_current, created_at, updated_at
		FROM responses
		WHERE question_id=$1
		ORDER BY created_at ASC, id ASC
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list responses by question: %w", err)
	}
	defer rows.Close()
	return scanResponses(rows)
}

func (s *PostgresStore) ListResponsesBySubject(ctx context.Context, subjectID, checklistID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.subject_id, r.question_id, r.answer_id, r.answer_text, r.source_type, r.comment, r.version, r.is_current, r.created_at, r.updated_at
		FROM responses r
		JOIN questions q ON q.id = r.question_id
		JOIN question_groups g ON g.id = q.group_id
		JOIN subsections ss ON ss.id = g.subsection_id
		JOIN sections s ON s.id = ss.section_id
		WHERE r.subject_id=$1 AND r.is_current
		  AND ($2='' OR s.checklist_id=$2)
		ORDER BY s.sort_order ASC, ss.sort_order ASC, g.sort_order ASC, q.sort_order ASC
	`, subjectID, checklistID)
	if err != nil {
		return nil, fmt.Errorf("list responses by subject: %w", err)
	}
	defer rows.Close()
	return scanResponses(rows)
}

func scanResponses(rows *sql.Rows) ([]Response, error) {
	items := make([]Response, 0)
	for rows.Next() {
		var item Response
		if err := rows.Scan(
			&item.ID,
			&item.SubjectID,
			&item.QuestionID,
			&item.AnswerID,
			&item.AnswerText,
			&item.SourceType,
			&item.Comment,
			&item.Version,
			&item.IsCurrent,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountCurrentResponses(ctx context.Context, questionID string) (responses int, subjects int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT subject_id)
		FROM responses
		WHERE question_id=$1 AND is_current
	`, questionID).Scan(&responses, &subjects)
	if err != nil {
		return 0, 0, fmt.Errorf("count current responses: %w", err)
	}
	return responses, subjects, nil
}

func (s *PostgresStore) CountCurrentResponsesForChecklist(ctx context.Context, checklistID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM responses r
		JOIN questions q ON q.id = r.question_id
		JOIN question_groups g ON g.id = q.group_id
		JOIN subsections ss ON ss.id = g.subsection_id
		JOIN sections s ON s.id = ss.section_id
		WHERE s.checklist_id=$1 AND r.is_current
	`, checklistID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count current responses for checklist: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) InsertResponse(ctx context.Context, item Response) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO responses (id, subject_id, question_id, answer_id, answer_text, source_type, comment, version, is_current)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.SubjectID, item.QuestionID, item.AnswerID, item.AnswerText, item.SourceType, item.Comment, item.Version, item.IsCurrent)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateResponseContent(ctx context.Context, responseID string, answerID *string, answerText, sourceType, comment string, version int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE responses
		SET answer_id=$2, answer_text=$3, source_type=$4, comment=$5, version=$6, updated_at=NOW()
		WHERE id=$1
	`, responseID, answerID, answerText, sourceType, comment, version)
	if err != nil {
		return fmt.Errorf("update response content: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateResponseQuestion(ctx context.Context, responseID, questionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE responses SET question_id=$2, updated_at=NOW() WHERE id=$1
	`, responseID, questionID)
	if err != nil {
		return fmt.Errorf("update response question: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetResponseCurrent(ctx context.Context, responseID string, current bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE responses SET is_current=$2, updated_at=NOW() WHERE id=$1
	`, responseID, current)
	if err != nil {
		return fmt.Errorf("set response current: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteResponse(ctx context.Context, responseID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE id=$1`, responseID); err != nil {
		return fmt.Errorf("delete response: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertResponseHistory(ctx context.Context, entry ResponseHistory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO response_history (response_id, previous_answer_id, previous_answer_text, previous_source_type, previous_comment, previous_version, change_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ResponseID, entry.PreviousAnswerID, entry.PreviousAnswerText, entry.PreviousSourceType, entry.PreviousComment, entry.PreviousVersion, entry.ChangeReason)
	if err != nil {
		return fmt.Errorf("insert response history: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResponseHistoryEntry(ctx context.Context, historyID int64) (ResponseHistory, error) {
	var item ResponseHistory
	err := s.db.QueryRowContext(ctx, `
		SELECT id, response_id, previous_answer_id, previous_answer_text, previous_source_type, previous_comment, previous_version, change_reason, created_at
		FROM response_history
		WHERE id=$1
	`, historyID).Scan(
		&item.ID,
		&item.ResponseID,
		&item.PreviousAnswerID,
		&item.PreviousAnswerText,
		&item.PreviousSourceType,
		&item.PreviousComment,
		&item.PreviousVersion,
		&item.ChangeReason,
		&item.CreatedAt,
	)
	if err != nil {
		return ResponseHistory{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListResponseHistory(ctx context.Context, responseID string) ([]ResponseHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, response_id, previous_answer_id, previous_answer_text, previous_source_type, previous_comment, previous_version, change_reason, created_at
		FROM response_history
		WHERE response_id=$1
		ORDER BY id ASC
	`, responseID)
	if err != nil {
		return nil, fmt.Errorf("list response history: %w", err)
	}
	defer rows.Close()

	items := make([]ResponseHistory, 0)
	for rows.Next() {
		var item ResponseHistory
		if err := rows.Scan(
			&item.ID,
			&item.ResponseID,
			&item.PreviousAnswerID,
			&item.PreviousAnswerText,
			&item.PreviousSourceType,
			&item.PreviousComment,
			&item.PreviousVersion,
			&item.ChangeReason,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan response history: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate response history: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertChecklistVersion(ctx context.Context, checklistID string, version int, fileHash string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE checklist_versions SET is_current=FALSE, updated_at=NOW()
		WHERE checklist_id=$1 AND is_current
	`, checklistID); err != nil {
		return fmt.Errorf("retire checklist versions: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO checklist_versions (checklist_id, version, file_hash, is_current)
		VALUES ($1, $2, $3, TRUE)
	`, checklistID, version, fileHash); err != nil {
		return fmt.Errorf("insert checklist version: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListChecklistVersions(ctx context.Context, checklistID string) ([]ChecklistVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, checklist_id, version, file_hash, is_current, created_at, updated_at
		FROM checklist_versions
		WHERE checklist_id=$1
		ORDER BY version DESC
	`, checklistID)
	if err != nil {
		return nil, fmt.Errorf("list checklist versions: %w", err)
	}
	defer rows.Close()

	items := make([]ChecklistVersion, 0)
	for rows.Next() {
		var item ChecklistVersion
		if err := rows.Scan(&item.ID, &item.ChecklistID, &item.Version, &item.FileHash, &item.IsCurrent, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan checklist version: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checklist versions: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
