package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/draven0x/wayfinder/api/schemas"
)

// errorBody is the envelope for endpoints that have no richer result to
// carry a failure in.
type errorBody struct {
	ErrorCode schemas.ErrorCode `json:"error_code"`
	Message   string            `json:"message"`
}

// statusOf maps the engine error taxonomy onto HTTP statuses. Domain misses
// are 404s; only capability failures surface as 500s.
func statusOf(code schemas.ErrorCode) int {
	switch code {
	case "":
		return http.StatusOK
	case schemas.ErrInvalidParameter:
		return http.StatusBadRequest
	case schemas.ErrPageNotFound, schemas.ErrIntentNotFound, schemas.ErrPathNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := schemas.CodeOf(err)
	s.writeJSON(w, statusOf(code), errorBody{ErrorCode: code, Message: err.Error()})
}

// decode reads the request body into req, rejecting malformed JSON as an
// invalid parameter.
func decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		body := errorBody{ErrorCode: schemas.ErrInvalidParameter, Message: "malformed request body: " + err.Error()}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(body)
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResolvePath(w http.ResponseWriter, r *http.Request) {
	var req schemas.ResolveRequest
	if !decode(w, r, &req) {
		return
	}
	res := s.engine.Resolve(r.Context(), req)
	s.writeJSON(w, statusOf(res.ErrorCode), res)
}

func (s *Server) handleNextAction(w http.ResponseWriter, r *http.Request) {
	var req schemas.NextActionRequest
	if !decode(w, r, &req) {
		return
	}
	res := s.engine.NextAction(r.Context(), req)
	s.writeJSON(w, statusOf(res.ErrorCode), res)
}

func (s *Server) handleMatchPage(w http.ResponseWriter, r *http.Request) {
	var req schemas.MatchRequest
	if !decode(w, r, &req) {
		return
	}
	res := s.engine.Match(r.Context(), req)
	s.writeJSON(w, statusOf(res.ErrorCode), res)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req schemas.RetrieveRequest
	if !decode(w, r, &req) {
		return
	}
	res := s.engine.Retrieve(r.Context(), req)
	s.writeJSON(w, statusOf(res.ErrorCode), res)
}

func (s *Server) handleReportTransition(w http.ResponseWriter, r *http.Request) {
	var req schemas.ReportRequest
	if !decode(w, r, &req) {
		return
	}
	res := s.engine.Report(r.Context(), req)
	s.writeJSON(w, statusOf(res.ErrorCode), res)
}

func (s *Server) handleAddPage(w http.ResponseWriter, r *http.Request) {
	var req schemas.AddPageRequest
	if !decode(w, r, &req) {
		return
	}
	page, err := s.engine.AddPage(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, page)
}

func (s *Server) handleRegisterIntent(w http.ResponseWriter, r *http.Request) {
	var req schemas.RegisterIntentRequest
	if !decode(w, r, &req) {
		return
	}
	intent, err := s.engine.RegisterIntent(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, intent)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req schemas.IngestRequest
	if !decode(w, r, &req) {
		return
	}
	res := s.engine.Ingest(r.Context(), req)
	s.writeJSON(w, statusOf(res.ErrorCode), res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	appID := r.URL.Query().Get("app_id")
	if appID == "" {
		s.writeError(w, schemas.NewEngineError(schemas.ErrInvalidParameter, "app_id query parameter is required"))
		return
	}
	stats, err := s.engine.Stats(r.Context(), appID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	appID := r.URL.Query().Get("app_id")
	if appID == "" {
		s.writeError(w, schemas.NewEngineError(schemas.ErrInvalidParameter, "app_id query parameter is required"))
		return
	}
	export, err := s.engine.Export(r.Context(), appID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, export)
}

func (s *Server) handlePageActions(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "pageID")
	actions, err := s.engine.PageActions(r.Context(), pageID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"page_id": pageID, "actions": actions})
}

func (s *Server) handleReachableIntents(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "pageID")
	depth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, schemas.NewEngineError(schemas.ErrInvalidParameter, "depth must be a positive integer"))
			return
		}
		depth = parsed
	}
	intents, err := s.engine.ReachableIntents(r.Context(), pageID, depth)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"page_id": pageID, "intents": intents})
}
