// Package migration contains the diff-and-migrate engine: response impact
// analysis, migration plan execution, tree revision application, and the
// snapshot-on-write history primitive they all mutate responses through.
package migration

import (
	"context"
	"fmt"

	"checkwise/api/internal/store"
)

type historyStore interface {
	GetResponse(ctx context.Context, responseID string) (store.Response, error)
	GetResponseHistoryEntry(ctx context.Context, historyID int64) (store.ResponseHistory, error)
	InsertResponseHistory(ctx context.Context, entry store.ResponseHistory) error
	UpdateResponseContent(ctx context.Context, responseID string, answerID *string, answerText, sourceType, comment string, version int) error
}

// ResponseFields is the mutable content of a response.
type ResponseFields struct {
	AnswerID   *string
	AnswerText string
	SourceType string
	Comment    string
}

// History is the sole write path for response content. Every mutation first
// snapshots the pre-mutation state into response_history and then bumps the
// version, so any past state stays recoverable.
type History struct {
	store historyStore
}

func NewHistory(s historyStore) History {
	return History{store: s}
}

// RecordAndMutate snapshots the response's current state with the given
// reason, then applies fields and increments version. Returns the response
// as persisted after the mutation.
func (h History) RecordAndMutate(ctx context.Context, response store.Response, fields ResponseFields, reason string) (store.Response, error) {
	snapshot := store.ResponseHistory{
		ResponseID:         response.ID,
		PreviousAnswerID:   response.AnswerID,
		PreviousAnswerText: response.AnswerText,
		PreviousSourceType: response.SourceType,
		PreviousComment:    response.Comment,
		PreviousVersion:    response.Version,
		ChangeReason:       reason,
	}
	if err := h.store.InsertResponseHistory(ctx, snapshot); err != nil {
		return store.Response{}, fmt.Errorf("snapshot response %s: %w", response.ID, err)
	}

	version := response.Version + 1
	if err := h.store.UpdateResponseContent(ctx, response.ID, fields.AnswerID, fields.AnswerText, fields.SourceType, fields.Comment, version); err != nil {
		return store.Response{}, fmt.Errorf("mutate response %s: %w", response.ID, err)
	}

	response.AnswerID = fields.AnswerID
	response.AnswerText = fields.AnswerText
	response.SourceType = fields.SourceType
	response.Comment = fields.Comment
	response.Version = version
	return response, nil
}

// Restore copies a historical state back onto the response. The current state
// is snapshotted first, so a restore can itself be undone.
func (h History) Restore(ctx context.Context, responseID string, historyID int64) error {
	response, err := h.store.GetResponse(ctx, responseID)
	if err != nil {
		return err
	}
	entry, err := h.store.GetResponseHistoryEntry(ctx, historyID)
	if err != nil {
		return err
	}
	if entry.ResponseID != response.ID {
		return fmt.Errorf("history entry %d does not belong to response %s", historyID, responseID)
	}

	fields := ResponseFields{
		AnswerID:   entry.PreviousAnswerID,
		AnswerText: entry.PreviousAnswerText,
		SourceType: entry.PreviousSourceType,
		Comment:    entry.PreviousComment,
	}
	if _, err := h.RecordAndMutate(ctx, response, fields, "pre-restore snapshot"); err != nil {
		return err
	}
	return nil
}
