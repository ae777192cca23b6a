// Package api is the JSON HTTP surface over [pronounce.Service].
//
// Routes:
//
//	POST /v1/compare                         raw target and produced strings
//	GET  /v1/content/{kind}                  list words or sentences
//	GET  /v1/content/{kind}/{id}             one item
//	POST /v1/content/{kind}/{id}/attempts    score produced phonemes against an item
//	POST /v1/content/{kind}/{id}/audio       recognize and score an uploaded recording
//	GET  /v1/exams/{id}                      one exam with its sentences
//	POST /v1/exams/score                     score a set of exam attempts
//	GET  /v1/phonemes                        the phoneme inventory
//
// Errors are JSON objects of the form {"error": "..."}.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/phonoscore/internal/content"
	"github.com/MrWong99/phonoscore/internal/observe"
	"github.com/MrWong99/phonoscore/internal/pronounce"
	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
)

const (
	defaultMaxAudioBytes = 10 << 20
	maxJSONBytes         = 1 << 20
)

// Option configures a [Handler].
type Option func(*Handler)

// WithMaxAudioBytes caps uploaded audio. Default: 10 MiB.
func WithMaxAudioBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxAudioBytes = n
		}
	}
}

// Handler serves the v1 API. It is safe for concurrent use.
type Handler struct {
	svc           *pronounce.Service
	maxAudioBytes int64
}

// New returns a [Handler] backed by svc.
func New(svc *pronounce.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, maxAudioBytes: defaultMaxAudioBytes}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the v1 routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/compare", h.compare)
	mux.HandleFunc("GET /v1/content/{kind}", h.listContent)
	mux.HandleFunc("GET /v1/content/{kind}/{id}", h.getContent)
	mux.HandleFunc("POST /v1/content/{kind}/{id}/attempts", h.contentAttempt)
	mux.HandleFunc("POST /v1/content/{kind}/{id}/audio", h.audioAttempt)
	mux.HandleFunc("GET /v1/exams/{id}", h.getExam)
	mux.HandleFunc("POST /v1/exams/score", h.scoreExam)
	mux.HandleFunc("GET /v1/phonemes", h.phonemes)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observe.Logger(r.Context()).Warn("api: encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorBody{Error: msg})
}

// fail maps a service error onto an HTTP status. Unexpected errors are
// logged and reported without detail.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, content.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pronounce.ErrEmptyAudio),
		errors.Is(err, recognizer.ErrNoAudio),
		errors.Is(err, pronounce.ErrNotInExam),
		errors.Is(err, pronounce.ErrDuplicateAttempt),
		errors.Is(err, pronounce.ErrTooManyTokens):
		status = http.StatusBadRequest
	case errors.Is(err, pronounce.ErrNoRecognizer),
		errors.Is(err, pronounce.ErrNoContentStore):
		status = http.StatusServiceUnavailable
	case errors.Is(err, pronounce.ErrRecognition):
		status = http.StatusBadGateway
	default:
		observe.Logger(r.Context()).Error("api: request failed", "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeError(w, r, status, err.Error())
}

// decode reads a JSON body of at most maxJSONBytes into v. Unknown fields
// are rejected.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
