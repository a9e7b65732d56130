package store

import "time"

// Checklist is the root of a versioned checklist document. Version increases
// by one on every applied revision; FileHash identifies the source document
// that produced the current tree.
type Checklist struct {
	ID          string
	ExternalID  string
	Title       string
	Description string
	Goal        string
	Version     int
	FileHash    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Section struct {
	ID          string
	ChecklistID string
	ExternalID  string
	Title       string
	Number      string
	SortOrder   int
}

type Subsection struct {
	ID         string
	SectionID  string
	ExternalID string
	Title      string
	Number     string
	SortOrder  int
}

type QuestionGroup struct {
	ID           string
	SubsectionID string
	ExternalID   string
	Title        string
	SortOrder    int
}

type Question struct {
	ID         string
	GroupID    string
	ExternalID string
	Text       string
	Hint       string
	AnswerType string // single | multiple
	SortOrder  int
}

type Answer struct {
	ID             string
	QuestionID     string
	ExternalID     string
	ValueMale      string
	ValueFemale    string
	ExportedMale   string
	ExportedFemale string
	Hint           string
	SortOrder      int
}

// Tree is the persisted checklist tree loaded level by level, flattened the
// same way the matcher consumes it.
type Tree struct {
	Checklist   Checklist
	Sections    []Section
	Subsections []Subsection
	Groups      []QuestionGroup
	Questions   []Question
	Answers     []Answer
}

// AnswersByQuestion groups the tree's answers by their parent question id.
func (t Tree) AnswersByQuestion() map[string][]Answer {
	grouped := make(map[string][]Answer)
	for _, answer := range t.Answers {
		grouped[answer.QuestionID] = append(grouped[answer.QuestionID], answer)
	}
	return grouped
}

// Response is the single current answer a subject has given to a question.
// QuestionID goes NULL when the question is removed in a later revision;
// archived rows keep their audit trail regardless.
type Response struct {
	ID         string
	SubjectID  string
	QuestionID *string
	AnswerID   *string
	AnswerText string
	SourceType string // found_in_text | logically_derived | imagined
	Comment    string
	Version    int
	IsCurrent  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ResponseHistory is an append-only snapshot of a response's state before a
// mutation. Rows are never updated and only removed by the cascade that
// removes their response.
type ResponseHistory struct {
	ID                 int64
	ResponseID         string
	PreviousAnswerID   *string
	PreviousAnswerText string
	PreviousSourceType string
	PreviousComment    string
	PreviousVersion    int
	ChangeReason       string
	CreatedAt          time.Time
}

type ChecklistVersion struct {
	ID          int64
	ChecklistID string
	Version     int
	FileHash    string
	IsCurrent   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
