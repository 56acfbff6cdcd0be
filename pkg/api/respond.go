package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"intranet-portal/pkg/validation"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

// failure is the error envelope shared by every endpoint.
type failure struct {
	OK      bool                   `json:"ok"`
	Message string                 `json:"message"`
	Errors  validation.FieldErrors `json:"errors,omitempty"`
}

// errorMapping turns a domain error into a status code and a safe message.
type errorMapping struct {
	status  func(error) int
	message func(error) string
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeFailure(w http.ResponseWriter, status int, message string, fields validation.FieldErrors) {
	writeJSON(w, status, failure{Message: message, Errors: fields})
}

// fail writes err through m. Server-side failures are logged with their
// cause; the client only sees the generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, m errorMapping, err error) {
	s.failWithStatus(w, r, m, err, m.status(err))
}

func (s *Server) failWithStatus(w http.ResponseWriter, r *http.Request, m errorMapping, err error, status int) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
	}
	fields, _ := validation.Fields(err)
	writeFailure(w, status, m.message(err), fields)
}

var errBadBody = errors.New("invalid request body")

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

func writeBadBody(w http.ResponseWriter) {
	writeFailure(w, http.StatusBadRequest, "Invalid request body.", nil)
}

// pathID returns the named route variable as an id, or 0 when it is not a
// number. Services reject 0 with their own invalid-id error.
func pathID(r *http.Request, name string) int64 {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0
	}
	return id
}
