package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/reconcile"
	"github.com/roach88/rewind/internal/value"
)

type createRequest struct {
	Collection string       `json:"collection"`
	Fields     value.Object `json:"fields"`
}

type saveRequest struct {
	Fields value.Object `json:"fields"`
}

type saveResponse struct {
	Record  *history.Record    `json:"record"`
	Entry   *history.DiffEntry `json:"entry,omitempty"`
	Changed bool               `json:"changed"`
}

type changesResponse struct {
	*history.View
	ArrayChanges []reconcile.ElementChange `json:"array_changes,omitempty"`
}

type undoResponse struct {
	*history.UndoOutcome
	Warnings []string `json:"warnings,omitempty"`
}

// actorFrom reads attribution headers. A missing user yields a Session
// with an empty username, which the service rejects with ErrNoActor.
func actorFrom(r *http.Request) history.Actor {
	return history.Session{
		Username: r.Header.Get(HeaderUser),
		Reason:   r.Header.Get(HeaderReason),
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func versionParam(r *http.Request) (int64, error) {
	raw := r.PathValue("version")
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid version %q", errBadRequest, raw)
	}
	return v, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Collection == "" {
		writeError(w, fmt.Errorf("%w: collection is required", errBadRequest))
		return
	}
	if req.Fields == nil {
		req.Fields = value.Object{}
	}

	rec, err := s.svc.Create(r.Context(), req.Collection, req.Fields, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/records/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.List(r.Context(), r.URL.Query().Get("collection"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Fields == nil {
		writeError(w, fmt.Errorf("%w: fields is required", errBadRequest))
		return
	}

	rec, entry, err := s.svc.Save(r.Context(), r.PathValue("id"), req.Fields, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{Record: rec, Entry: entry, Changed: entry != nil})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("id"), actorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Verify(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStateAt(w http.ResponseWriter, r *http.Request) {
	version, err := versionParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := s.svc.StateAt(r.Context(), r.PathValue("id"), version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      r.PathValue("id"),
		"version": version,
		"fields":  state,
	})
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	version, err := versionParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")

	view, err := s.svc.Changes(r.Context(), id, version)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := changesResponse{View: view}

	if field := r.URL.Query().Get("field"); field != "" {
		resp.ArrayChanges, err = s.svc.ArrayChanges(r.Context(), id, version, field)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	version, err := versionParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	opts := history.UndoOptions{}
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		opts.DryRun, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid dry_run %q", errBadRequest, raw))
			return
		}
	}

	out, err := s.svc.Undo(r.Context(), r.PathValue("id"), version, actorFrom(r), opts)
	if err != nil && !history.IsPartialUndo(err) {
		writeError(w, err)
		return
	}
	resp := undoResponse{UndoOutcome: out}
	if err != nil {
		resp.Warnings = []string{err.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}
