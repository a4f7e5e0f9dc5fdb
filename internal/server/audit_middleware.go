package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// redactedFields are masked in audited request and response bodies.
var redactedFields = map[string]struct{}{
	"password": {},
	"token":    {},
}

func (s *Server) auditLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := s.now()
		entry := AuditLogEntry{
			Timestamp: started,
			Method:    r.Method,
			Path:      r.URL.Path,
			Handler:   handlerName(r),
			ListingID: mux.Vars(r)["id"],
		}

		if token, ok := bearerToken(r); ok {
			if id, err := s.auth.Verify(token); err == nil {
				entry.UserID = id.UserID
			}
		}

		if r.Body != nil && !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			requestBody, _ := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
			r.Body = readCloser{io.MultiReader(bytes.NewReader(requestBody), r.Body), r.Body}
			if len(requestBody) > maxBodyBytes {
				entry.Request = oversizedBody
			} else {
				entry.Request = redact(requestBody)
			}
		}

		transition := entry.ListingID != "" && r.Method == http.MethodPost
		if transition {
			if listing, err := s.reader.GetListing(r.Context(), entry.ListingID); err == nil {
				entry.OldStatus = string(listing.Effective(started))
			}
		}

		wrw := newResponseWriterWrapper(w)
		next.ServeHTTP(wrw, r)

		entry.StatusCode = wrw.GetStatusCode()
		entry.Response = redact(wrw.GetBody())
		entry.Duration = s.now().Sub(started)
		if transition && entry.StatusCode < http.StatusMultipleChoices {
			if listing, err := s.reader.GetListing(r.Context(), entry.ListingID); err == nil {
				entry.NewStatus = string(listing.Effective(s.now()))
			}
		}

		s.AuditManager.LogEntry(r.Context(), entry)
	})
}

// oversizedBody replaces request bodies past maxBodyBytes in the audit trail.
// A truncated body cannot be parsed for redaction.
const oversizedBody = "[body exceeds limit]"

// readCloser replays the audited prefix ahead of the unread body.
type readCloser struct {
	io.Reader
	io.Closer
}

func handlerName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
		return route.GetName()
	}
	return "unknown"
}

// redact masks sensitive top-level fields of a JSON object body. Non-JSON
// bodies are returned as is.
func redact(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return string(body)
	}
	masked := false
	for field := range obj {
		if _, ok := redactedFields[strings.ToLower(field)]; ok {
			obj[field] = json.RawMessage(`"[REDACTED]"`)
			masked = true
		}
	}
	if !masked {
		return strings.TrimSpace(string(body))
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return ""
	}
	return string(out)
}
