package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/quotaboard/internal/adapters/repository"
)

type snapshotsResponse struct {
	Snapshots []repository.Snapshot `json:"snapshots"`
}

// handleSnapshots handles GET /api/snapshots?limit=N.
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	const op = "api.snapshots"
	if !s.authorizeRead(w, r, op) {
		return
	}
	limit := s.snapshotLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.fail(w, r, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", raw)))
			return
		}
		limit = n
	}
	list, err := s.deps.Snapshots(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []repository.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snapshotsResponse{Snapshots: list})
}

// handleSnapshot handles GET /api/snapshots/{id}.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "api.snapshot"
	if !s.authorizeRead(w, r, op) {
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/snapshots/"), "/")
	if id == "" {
		s.fail(w, r, WrapKind(op, ErrBadRequest, fmt.Errorf("missing snapshot id")))
		return
	}
	snap, err := s.deps.Snapshot(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) authorizeRead(w http.ResponseWriter, r *http.Request, op string) bool {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethod))
		return false
	}
	if !s.session(w, r).Authenticated() {
		s.fail(w, r, NewKind(op, ErrUnauthenticated))
		return false
	}
	return true
}
