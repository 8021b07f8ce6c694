package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/polisai/polis-dag/pkg/engine"
)

// runRequest is the body of POST /pipelines/run.
type runRequest struct {
	domain.PipelineDefinition
	Input any `json:"input,omitempty"`
}

// namedRunRequest is the body of POST /pipelines/{name}/run.
type namedRunRequest struct {
	Input     any    `json:"input,omitempty"`
	InputNode string `json:"inputNode,omitempty"`
}

// planRequest is the body of POST /pipelines/plan.
type planRequest struct {
	domain.PipelineDefinition
}

type runResponse struct {
	RunID  string           `json:"runId"`
	Status domain.RunStatus `json:"status"`
	Result any              `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

type runnerInfo struct {
	Type        string   `json:"type"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description,omitempty"`
	Schema      any      `json:"schema,omitempty"`
}

type pipelineInfo struct {
	Name  string `json:"name"`
	Nodes int    `json:"nodes"`
	Edges int    `json:"edges"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !s.decode(w, r, &req) {
		return
	}

	def := req.PipelineDefinition
	resp, err := s.execute(r.Context(), &def, req.Input, "")
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "store_error", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunNamed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.catalog == nil {
		s.writeError(w, r, http.StatusNotFound, "pipeline_not_found", fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, name))
		return
	}
	def, err := s.catalog.GetPipeline(name)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, "pipeline_not_found", err)
		return
	}

	var req namedRunRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}

	resp, err := s.execute(r.Context(), def, req.Input, req.InputNode)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "store_error", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// execute persists def, records the run as running, executes it and stores
// the terminal state. Engine failures are reported in the response; only
// storage failures are returned as errors. Once started, a run is not
// cancelled by the client going away.
func (s *Server) execute(ctx context.Context, def *domain.PipelineDefinition, input any, inputNode string) (runResponse, error) {
	started := s.now()

	stored := domain.StoredPipeline{
		ID:         s.newID(),
		Name:       def.Name,
		Definition: *def,
		CreatedAt:  started,
	}
	if err := s.store.SavePipeline(ctx, stored); err != nil {
		return runResponse{}, fmt.Errorf("save pipeline: %w", err)
	}

	rec := &domain.RunRecord{
		ID:         s.newID(),
		PipelineID: stored.ID,
		Name:       def.Name,
		Status:     domain.RunRunning,
		Log:        []string{},
		StartedAt:  started,
	}
	if err := s.store.CreateRun(ctx, rec); err != nil {
		return runResponse{}, fmt.Errorf("create run: %w", err)
	}

	s.metrics.RunStarted()
	res, runErr := s.executor.Run(context.WithoutCancel(ctx), engine.RunRequest{
		Definition: def,
		Input:      input,
		InputNode:  inputNode,
	})

	ended := s.now()
	rec.EndedAt = &ended
	if res != nil {
		rec.Log = append(rec.Log, res.Log...)
	}
	if runErr != nil {
		rec.Status = domain.RunFailed
		rec.Error = runErr.Error()
		rec.Log = append(rec.Log, "error: "+rec.Error)
	} else if err := checkEncodable(res.Output); err != nil {
		rec.Status = domain.RunFailed
		rec.Error = fmt.Sprintf("result is not JSON-encodable: %v", err)
		rec.Log = append(rec.Log, "error: "+rec.Error)
	} else {
		rec.Status = domain.RunSucceeded
		rec.Result = res.Output
	}
	s.metrics.RunFinished(def.Name, string(rec.Status), ended.Sub(started))

	// The run already happened; persist its outcome even if the request was
	// cancelled meanwhile.
	if err := s.store.UpdateRun(context.WithoutCancel(ctx), rec); err != nil {
		return runResponse{}, fmt.Errorf("update run: %w", err)
	}

	s.logger.Info("pipeline run recorded",
		"run_id", rec.ID,
		"pipeline", def.Name,
		"status", rec.Status,
		"duration_ms", ended.Sub(started).Milliseconds(),
	)

	return runResponse{RunID: rec.ID, Status: rec.Status, Result: rec.Result, Error: rec.Error}, nil
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrRunNotFound) {
		s.writeError(w, r, http.StatusNotFound, "run_not_found", err)
		return
	}
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "store_error", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var filter domain.RunFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseRunStatus(raw)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid_request", err)
			return
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.writeError(w, r, http.StatusBadRequest, "invalid_request", fmt.Errorf("limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "store_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !s.decode(w, r, &req) {
		return
	}

	plan, err := s.executor.Plan(&req.PipelineDefinition, req.InputNode)
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, "invalid_pipeline", err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleRunners(w http.ResponseWriter, _ *http.Request) {
	specs := s.executor.Registry().Specs()
	out := make([]runnerInfo, 0, len(specs))
	for _, spec := range specs {
		info := runnerInfo{Type: spec.Type, Aliases: spec.Aliases, Description: spec.Description}
		if spec.Schema != nil {
			info.Schema = spec.Schema.Source()
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runners": out})
}

func (s *Server) handleListPipelines(w http.ResponseWriter, _ *http.Request) {
	out := []pipelineInfo{}
	if s.catalog != nil {
		for _, def := range s.catalog.ListPipelines() {
			out = append(out, pipelineInfo{Name: def.Name, Nodes: len(def.Nodes), Edges: len(def.Edges)})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pipelines": out})
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.writeError(w, r, http.StatusServiceUnavailable, "store_unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
