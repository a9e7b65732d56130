package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery over the questions tsvector column, ranked
// with ts_rank and snippeted with ts_headline.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}

	where := "q.fts @@ " + tsQuery
	if q.FilterChecklistID != "" {
		where += " AND s.checklist_id = $2"
		args = append(args, q.FilterChecklistID)
	}

	baseSQL := fmt.Sprintf(`
		SELECT q.id, q.body,
			ts_headline('english', coalesce(q.body, '') || ' ' || coalesce(q.hint, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			s.checklist_id, q.answer_type,
			ts_rank(q.fts, %s) AS rank
		FROM questions q
		JOIN question_groups g ON g.id = q.group_id
		JOIN subsections ss ON ss.id = g.subsection_id
		JOIN sections s ON s.id = ss.section_id
		WHERE %s`, tsQuery, tsQuery, where)

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", baseSQL)
	dataSQL := fmt.Sprintf(`SELECT id, body, snippet, checklist_id, answer_type
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`, baseSQL, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Body, &r.Snippet, &r.ChecklistID, &r.AnswerType); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every question for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]QuestionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT q.id, q.body, q.hint, s.checklist_id, q.answer_type
		FROM questions q
		JOIN question_groups g ON g.id = q.group_id
		JOIN subsections ss ON ss.id = g.subsection_id
		JOIN sections s ON s.id = ss.section_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	records := make([]QuestionRecord, 0)
	for rows.Next() {
		var record QuestionRecord
		if err := rows.Scan(&record.ID, &record.Body, &record.Hint, &record.ChecklistID, &record.AnswerType); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return records, nil
}
