package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/MrWong99/phonoscore/internal/content"
	"github.com/MrWong99/phonoscore/internal/pronounce"
	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
)

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	var req pronounce.Request
	if !decode(w, r, &req) {
		return
	}
	rep, err := h.svc.Compare(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rep)
}

// parseRef parses the {kind}/{id} path values. Exams are not addressable as
// content items.
func parseRef(w http.ResponseWriter, r *http.Request) (content.Ref, bool) {
	ref, err := content.ParseRef(r.PathValue("kind"), r.PathValue("id"))
	if err == nil && ref.Kind == content.KindExam {
		err = errors.New("exams are served under /v1/exams")
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return content.Ref{}, false
	}
	return ref, true
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) (content.Store, bool) {
	s := h.svc.Content()
	if s == nil {
		fail(w, r, pronounce.ErrNoContentStore)
		return nil, false
	}
	return s, true
}

type listResponse struct {
	Items []content.Item `json:"items"`
}

func (h *Handler) listContent(w http.ResponseWriter, r *http.Request) {
	kind, err := content.ParseKind(r.PathValue("kind"))
	if err == nil && kind == content.KindExam {
		err = errors.New("exams are served under /v1/exams")
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	f := content.Filter{Category: r.URL.Query().Get("category")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid limit "+strconv.Quote(v))
			return
		}
		f.Limit = n
	}

	s, ok := h.store(w, r)
	if !ok {
		return
	}
	items, err := s.List(r.Context(), kind, f)
	if err != nil {
		fail(w, r, err)
		return
	}
	if items == nil {
		items = []content.Item{}
	}
	writeJSON(w, r, http.StatusOK, listResponse{Items: items})
}

func (h *Handler) getContent(w http.ResponseWriter, r *http.Request) {
	ref, ok := parseRef(w, r)
	if !ok {
		return
	}
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	item, err := s.Get(r.Context(), ref)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

type attemptRequest struct {
	Produced string `json:"produced"`
}

func (h *Handler) contentAttempt(w http.ResponseWriter, r *http.Request) {
	ref, ok := parseRef(w, r)
	if !ok {
		return
	}
	var req attemptRequest
	if !decode(w, r, &req) {
		return
	}
	rep, err := h.svc.AssessContent(r.Context(), ref, req.Produced)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rep)
}

// audioAttempt accepts a multipart form with the recording in the "file"
// field.
func (h *Handler) audioAttempt(w http.ResponseWriter, r *http.Request) {
	ref, ok := parseRef(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioBytes+1<<10)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "audio exceeds "+strconv.FormatInt(h.maxAudioBytes, 10)+" bytes")
			return
		}
		writeError(w, r, http.StatusBadRequest, "missing audio file: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxAudioBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "read audio: "+err.Error())
		return
	}
	if int64(len(data)) > h.maxAudioBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "audio exceeds "+strconv.FormatInt(h.maxAudioBytes, 10)+" bytes")
		return
	}

	rep, err := h.svc.AssessAudio(r.Context(), ref, recognizer.Audio{Data: data, Filename: header.Filename})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rep)
}

func (h *Handler) getExam(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid exam id "+strconv.Quote(r.PathValue("id")))
		return
	}
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	exam, err := s.Exam(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, exam)
}

type scoreExamRequest struct {
	ExamID   int64               `json:"exam_id"`
	Attempts []pronounce.Attempt `json:"attempts"`
}

func (h *Handler) scoreExam(w http.ResponseWriter, r *http.Request) {
	var req scoreExamRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ExamID <= 0 {
		writeError(w, r, http.StatusBadRequest, "exam_id is required")
		return
	}
	rep, err := h.svc.ScoreExam(r.Context(), req.ExamID, req.Attempts)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rep)
}

type phonemeEntry struct {
	Symbol       string   `json:"symbol"`
	Class        string   `json:"class"`
	Similar      []string `json:"similar"`
	MinimalPairs []string `json:"minimal_pairs"`
}

type phonemesResponse struct {
	Symbols []phonemeEntry `json:"symbols"`
}

func (h *Handler) phonemes(w http.ResponseWriter, r *http.Request) {
	inv := h.svc.Inventory()
	declared := inv.Declared()
	out := phonemesResponse{Symbols: make([]phonemeEntry, 0, len(declared))}
	for _, s := range declared {
		out.Symbols = append(out.Symbols, phonemeEntry{
			Symbol:       s.Text,
			Class:        s.Class.String(),
			Similar:      nonNil(inv.Similar(s.Text)),
			MinimalPairs: nonNil(inv.MinimalPairs(s.Text)),
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
