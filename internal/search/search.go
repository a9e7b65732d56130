package search

// Result is a single question hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	Body        string `json:"body"`
	Snippet     string `json:"snippet"`
	ChecklistID string `json:"checklistId"`
	AnswerType  string `json:"answerType"`
}

// Query describes a search request.
type Query struct {
	Text              string
	FilterChecklistID string
	Limit             int
	Offset            int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over questions.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// QuestionRecord is the data we index for a question.
type QuestionRecord struct {
	ID          string `json:"id"`
	Body        string `json:"body"`
	Hint        string `json:"hint"`
	ChecklistID string `json:"checklistId"`
	AnswerType  string `json:"answerType"`
}
