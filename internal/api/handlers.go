package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wesm/mboxbrowser/internal/mboxerr"
	"github.com/wesm/mboxbrowser/internal/session"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// OpenRequest is the body of POST /open.
type OpenRequest struct {
	Path string `json:"path"`
}

// EmailList is a page of index entries.
type EmailList struct {
	Offset int                  `json:"offset"`
	Limit  int                  `json:"limit"`
	Total  int                  `json:"total"`
	Emails []session.EmailEntry `json:"emails"`
}

// SearchResponse echoes the query alongside its results.
type SearchResponse struct {
	Query string `json:"query"`
	session.SearchResults
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// errorStatus maps an error kind to its HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch mboxerr.Kind(err) {
	case mboxerr.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case mboxerr.ErrValidation:
		return http.StatusBadRequest, "validation_error"
	case mboxerr.ErrQuerySyntax:
		return http.StatusBadRequest, "query_syntax_error"
	case mboxerr.ErrMboxFormat:
		return http.StatusUnprocessableEntity, "mbox_format_error"
	case mboxerr.ErrIO:
		return http.StatusInternalServerError, "io_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, code, err.Error())
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, mboxerr.Validation("%s must be a number, got %q", name, v)
	}
	return n, nil
}

// pathIndex parses a numeric URL path parameter.
func pathIndex(r *http.Request, name string) (int, error) {
	v := chi.URLParam(r, name)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, mboxerr.Validation("%s must be a number, got %q", name, v)
	}
	return n, nil
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be JSON with a \"path\" field")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "path is required")
		return
	}

	stats, err := s.box.Open(r.Context(), req.Path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("mbox opened via API", "path", stats.Path, "messages", stats.TotalMessages)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.box.Close(); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.box.Stats()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", defaultPageSize)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit = min(limit, maxPageSize)

	emails, err := s.box.GetEmails(offset, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EmailList{
		Offset: offset,
		Limit:  limit,
		Total:  s.box.GetEmailCount(),
		Emails: emails,
	})
}

func (s *Server) handleEmailCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": s.box.GetEmailCount()})
}

func (s *Server) handleGetEmail(w http.ResponseWriter, r *http.Request) {
	seq, err := pathIndex(r, "index")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := s.box.GetEmailBody(seq)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// handleGetAttachment streams the decoded attachment with its recorded
// content type and filename.
func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	seq, err := pathIndex(r, "index")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	idx, err := pathIndex(r, "attachment")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	body, err := s.box.GetEmailBody(seq)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := s.box.GetAttachment(seq, idx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if idx >= len(body.Attachments) {
		// The message changed between the two reads.
		s.fail(w, r, errors.New("attachment metadata unavailable"))
		return
	}
	meta := body.Attachments[idx]

	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if meta.Filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": meta.Filename}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"labels": s.box.GetLabels()})
}

func (s *Server) handleEmailsByLabel(w http.ResponseWriter, r *http.Request) {
	label, err := url.PathUnescape(chi.URLParam(r, "label"))
	if err != nil {
		s.fail(w, r, mboxerr.Validation("invalid label %q", chi.URLParam(r, "label")))
		return
	}
	emails, err := s.box.GetEmailsByLabel(label)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"label":  label,
		"emails": emails,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.box.Search(r.Context(), query, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: query, SearchResults: *res})
}
