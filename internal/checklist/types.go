// Package checklist models the candidate checklist document as exported by
// the authoring tool: a nested JSON tree with an author-assigned stable id at
// every level. The id is the only identity signal that survives revisions.
package checklist

// Document is the root of a parsed candidate document.
type Document struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Goal        string       `json:"goal"`
	Sections    []DocSection `json:"sections"`
}

type DocSection struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Number      string          `json:"number"`
	Subsections []DocSubsection `json:"subsections"`
}

type DocSubsection struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Number string     `json:"number"`
	Groups []DocGroup `json:"questionGroups"`
}

type DocGroup struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Questions []DocQuestion `json:"questions"`
}

// AnswerType values accepted for a question.
const (
	AnswerTypeSingle   = "single"
	AnswerTypeMultiple = "multiple"
)

type DocQuestion struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	Hint       string      `json:"hint"`
	AnswerType string      `json:"answerType"`
	Answers    []DocAnswer `json:"answers"`
}

// GenderedText carries the male/female display variants of an answer value.
type GenderedText struct {
	Male   string `json:"male"`
	Female string `json:"female"`
}

type DocAnswer struct {
	ID            string       `json:"id"`
	Value         GenderedText `json:"value"`
	ExportedValue GenderedText `json:"exportedValue"`
	Hint          string       `json:"hint"`
}
