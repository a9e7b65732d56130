package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"checkwise/api/internal/search"
)

// maxDocumentBytes caps uploaded checklist documents.
const maxDocumentBytes = 4 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	syncToken  string
}

// NewHTTPServer builds the handler. syncToken guards the import routes; an
// empty token leaves them open (local development).
func NewHTTPServer(service *Service, corsOrigin, syncToken string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, syncToken: syncToken}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	ctx := r.Context()

	switch {
	case r.Method == http.MethodGet && path == "/api/health":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case r.Method == http.MethodGet && path == "/api/ready":
		if err := s.service.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "Database unreachable", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})

	case r.Method == http.MethodGet && path == "/api/checklists":
		checklists, err := s.service.ListChecklists(ctx)
		if err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, checklists)

	case r.Method == http.MethodGet && matchPath(path, "/api/checklists/{id}"):
		checklistID := pathSegment(path, 2)
		item, err := s.service.GetChecklist(ctx, checklistID)
		if err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case r.Method == http.MethodGet && matchPath(path, "/api/checklists/{id}/tree"):
		checklistID := pathSegment(path, 2)
		tree, err := s.service.GetTree(ctx, checklistID)
		if err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tree)

	case r.Method == http.MethodGet && matchPath(path, "/api/checklists/{id}/versions"):
		checklistID := pathSegment(path, 2)
		versions, err := s.service.GetVersionHistory(ctx, checklistID)
		if err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, versions)

	case r.Method == http.MethodGet && matchPath(path, "/api/checklists/{id}/revisions"):
		checklistID := pathSegment(path, 2)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		commits, err := s.service.GetRevisionHistory(checklistID, limit)
		if err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, commits)

	case r.Method == http.MethodPost && matchPath(path, "/api/checklists/{id}/check"):
		s.handleImport(w, r, func(checklistID string, raw []byte) (any, error) {
			return s.service.CheckForUpdates(ctx, checklistID, raw)
		})

	case r.Method == http.MethodPost && matchPath(path, "/api/checklists/{id}/analyze"):
		s.handleImport(w, r, func(checklistID string, raw []byte) (any, error) {
			return s.service.AnalyzeChanges(ctx, checklistID, raw)
		})

	case r.Method == http.MethodPost && matchPath(path, "/api/checklists/{id}/impact"):
		s.handleImport(w, r, func(checklistID string, raw []byte) (any, error) {
			return s.service.AnalyzeMigrationImpact(ctx, checklistID, raw)
		})

	case r.Method == http.MethodPost && matchPath(path, "/api/checklists/{id}/migrate"):
		dryRun := r.URL.Query().Get("dry_run") == "true"
		s.handleImport(w, r, func(checklistID string, raw []byte) (any, error) {
			return s.service.ExecuteMigration(ctx, checklistID, raw, dryRun)
		})

	case r.Method == http.MethodPost && matchPath(path, "/api/checklists/{id}/update"):
		force := r.URL.Query().Get("force") == "true"
		migrateResponses := r.URL.Query().Get("migrate_responses") == "true"
		s.handleImport(w, r, func(checklistID string, raw []byte) (any, error) {
			return s.service.UpdateChecklist(ctx, checklistID, raw, force, migrateResponses)
		})

	case r.Method == http.MethodPost && path == "/api/responses":
		var input SubmitResponseInput
		if !decodeBody(w, r, &input) {
			return
		}
		response, err := s.service.SubmitResponse(ctx, input)
		if err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response)

	case r.Method == http.MethodGet && path == "/api/responses":
		subjectID := r.URL.Query().Get("subject_id")
		checklistID := r.URL.Query().Get("checklist_id")
		responses, err := s.service.ListResponses(ctx, subjectID, checklistID)
		if err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, responses)

	case r.Method == http.MethodGet && matchPath(path, "/api/responses/{id}"):
		response, err := s.service.GetResponse(ctx, pathSegment(path, 2))
		if err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response)

	case r.Method == http.MethodGet && matchPath(path, "/api/responses/{id}/history"):
		history, err := s.service.GetResponseHistory(ctx, pathSegment(path, 2))
		if err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, history)

	case r.Method == http.MethodPost && matchPath(path, "/api/responses/{id}/restore"):
		var input struct {
			HistoryID int64 `json:"historyId"`
		}
		if !decodeBody(w, r, &input) {
			return
		}
		if err := s.service.RestoreResponse(ctx, pathSegment(path, 2), input.HistoryID); err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})

	case r.Method == http.MethodDelete && matchPath(path, "/api/responses/{id}"):
		if err := s.service.DeleteResponse(ctx, pathSegment(path, 2)); err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	case r.Method == http.MethodGet && path == "/api/search":
		q := search.Query{
			Text:              r.URL.Query().Get("q"),
			FilterChecklistID: r.URL.Query().Get("checklist_id"),
		}
		q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
		q.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
		result, err := s.service.SearchQuestions(q)
		if err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case r.Method == http.MethodGet && matchPath(path, "/api/reviews/{token}"):
		report, err := s.service.LookupReview(ctx, pathSegment(path, 2))
		if err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)

	case r.Method == http.MethodDelete && matchPath(path, "/api/reviews/{token}"):
		if err := s.service.ResolveReview(ctx, pathSegment(path, 2)); err != nil {
			s.mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

// handleImport reads the uploaded document, checks the sync token, and runs
// one of the import operations.
func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request, op func(checklistID string, raw []byte) (any, error)) {
	if s.syncToken != "" && r.Header.Get("x-checkwise-sync-token") != s.syncToken {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid sync token", nil)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read request body", nil)
		return
	}
	if len(raw) > maxDocumentBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "DOCUMENT_TOO_LARGE", "Document exceeds the size limit", nil)
		return
	}
	checklistID := pathSegment(strings.TrimSuffix(r.URL.Path, "/"), 2)
	result, err := op(checklistID, raw)
	if err != nil {
		s.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// matchPath compares a request path against a pattern where {x} segments
// match any single non-empty segment.
func matchPath(path, pattern string) bool {
	pathParts := strings.Split(strings.Trim(path, "/"), "/")
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(pathParts) != len(patternParts) {
		return false
	}
	for i, part := range patternParts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			if pathParts[i] == "" {
				return false
			}
			continue
		}
		if pathParts[i] != part {
			return false
		}
	}
	return true
}

// pathSegment returns the zero-based segment of a path like /api/x/{id}/y.
func pathSegment(path string, index int) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if index >= len(parts) {
		return ""
	}
	return parts[index]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxDocumentBytes))
	if err := decoder.Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON", nil)
		return false
	}
	return true
}

func (s *HTTPServer) mapError(w http.ResponseWriter, err error) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		writeError(w, domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details)
		return
	}
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
		return
	}
	log.Printf("http: internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error", nil)
}

type contextKey string

const requestIDKey contextKey = "request_id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-Id", requestID)

		s.setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r.WithContext(ctx))

		log.Printf(`{"request_id":%q,"method":%q,"path":%q,"status":%d,"duration_ms":%d}`,
			requestID, r.Method, r.URL.Path, recorder.status, time.Since(start).Milliseconds())
	})
}

func (s *HTTPServer) setCORSHeaders(w http.ResponseWriter) {
	origin := s.corsOrigin
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id, x-checkwise-sync-token")
}
