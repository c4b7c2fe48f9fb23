package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/swarmopt/internal/config"
	"github.com/copyleftdev/swarmopt/internal/metrics"
	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/candidate"
	"github.com/copyleftdev/swarmopt/internal/optimization/pso"
)

// Run statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

var errNotFound = errors.New("optimization not found")

// rpcError carries a JSON-RPC error code with its message.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return e.Message }

func invalidParams(err error) error {
	return &rpcError{Code: codeInvalidParams, Message: err.Error()}
}

// OptimizationState represents the state of an optimization job.
// It is guarded by the owning Server's mutex.
type OptimizationState struct {
	ID            string
	Problem       string
	Status        string
	StartTime     time.Time
	EndTime       *time.Time
	Progress      float64
	MaxIterations int
	BestSolution  *optimization.Solution
	Error         string
	Optimizer     optimization.Optimizer
	CancelFunc    context.CancelFunc
	LastUpdated   time.Time
}

// Server implements the HTTP and JSON-RPC server for the optimization service.
// It manages optimization jobs and provides endpoints to start, monitor, and cancel them.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	// workers bounds the number of concurrently running optimizations
	workers chan struct{}
	wg      sync.WaitGroup

	optimizations   map[string]*OptimizationState
	optimizationsMu sync.RWMutex
}

// NewServer creates a new server instance with the given config, logger
// and metrics.
func NewServer(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *Server {
	workers := cfg.Optimization.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       m,
		workers:       make(chan struct{}, workers),
		optimizations: make(map[string]*OptimizationState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/problems", s.handleProblems)
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      interface{}       `json:"id"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "optimization.start":
		var req StartRequest
		if err = decodeParams(request.Params, &req); err == nil {
			result, err = s.startOptimization(req)
		}
	case "optimization.status":
		var req idRequest
		if err = decodeParams(request.Params, &req); err == nil {
			result, err = s.optimizationStatus(req.OptimizationID)
		}
	case "optimization.cancel":
		var req idRequest
		if err = decodeParams(request.Params, &req); err == nil {
			err = s.cancelOptimization(req.OptimizationID)
			result = map[string]string{"status": StatusCancelled}
		}
	default:
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			s.respondWithError(w, rpcErr.Code, rpcErr.Message, request.ID)
			return
		}
		s.respondWithError(w, codeServerError, err.Error(), request.ID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

type idRequest struct {
	OptimizationID string `json:"optimization_id"`
}

// decodeParams decodes the first positional parameter into dst.
func decodeParams(params []json.RawMessage, dst interface{}) error {
	if len(params) == 0 {
		return invalidParams(fmt.Errorf("missing required parameters"))
	}
	if err := json.Unmarshal(params[0], dst); err != nil {
		return invalidParams(fmt.Errorf("invalid parameter format: %v", err))
	}
	return nil
}

// startOptimization validates req, registers a pending job and launches it.
func (s *Server) startOptimization(req StartRequest) (map[string]interface{}, error) {
	plan, err := s.buildRun(req)
	if err != nil {
		return nil, invalidParams(err)
	}

	id := uuid.New().String()
	runLogger := s.logger.With(zap.String("optimization_id", id), zap.String("problem", plan.problemName))

	ctx, cancel := context.WithCancel(context.Background())
	state := &OptimizationState{
		ID:            id,
		Problem:       plan.problemName,
		Status:        StatusPending,
		StartTime:     time.Now(),
		MaxIterations: plan.psoConfig.MaxIterations,
		CancelFunc:    cancel,
		LastUpdated:   time.Now(),
	}

	opts := []pso.Option{
		pso.WithRand(plan.rng),
		pso.WithLogger(runLogger),
		pso.WithObserver(s.progressObserver(state, plan.problemName)),
	}
	optimizer, err := pso.NewOptimizer(plan.psoConfig, plan.population, opts...)
	if err != nil {
		cancel()
		return nil, invalidParams(err)
	}
	state.Optimizer = optimizer

	s.optimizationsMu.Lock()
	s.optimizations[id] = state
	s.optimizationsMu.Unlock()

	runLogger.Info("Optimization queued",
		zap.Int("particles", len(plan.population)),
		zap.Int("max_iterations", plan.psoConfig.MaxIterations),
	)

	s.wg.Add(1)
	go s.runOptimization(ctx, state, runLogger)

	return map[string]interface{}{
		"optimization_id": id,
		"status":          StatusPending,
	}, nil
}

// progressObserver updates the job's progress after every iteration.
func (s *Server) progressObserver(state *OptimizationState, problem string) pso.IterationObserver {
	var record pso.IterationObserver
	if s.metrics != nil {
		record = s.metrics.Observer(problem)
	}
	return func(iteration int, best *candidate.Particle, stats pso.Stats) {
		if record != nil {
			record(iteration, best, stats)
		}
		solution := best.Solution()

		s.optimizationsMu.Lock()
		if state.MaxIterations > 0 {
			state.Progress = float64(iteration) / float64(state.MaxIterations)
		}
		state.BestSolution = solution
		state.LastUpdated = time.Now()
		s.optimizationsMu.Unlock()
	}
}

// runOptimization executes the optimization process in a goroutine
func (s *Server) runOptimization(ctx context.Context, state *OptimizationState, logger *zap.Logger) {
	defer s.wg.Done()

	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-ctx.Done():
		s.optimizationsMu.Lock()
		s.markCancelled(state)
		s.optimizationsMu.Unlock()
		return
	}

	s.optimizationsMu.Lock()
	if state.Status != StatusPending {
		s.optimizationsMu.Unlock()
		return
	}
	if ctx.Err() != nil {
		s.markCancelled(state)
		s.optimizationsMu.Unlock()
		return
	}
	state.Status = StatusRunning
	state.LastUpdated = time.Now()
	s.optimizationsMu.Unlock()

	if s.metrics != nil {
		s.metrics.RunStarted(state.Problem)
	}
	start := time.Now()

	result, err := state.Optimizer.Optimize(ctx)

	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	outcome := metrics.StatusCompleted
	switch {
	case err != nil && ctx.Err() != nil:
		outcome = metrics.StatusCancelled
		state.Status = StatusCancelled
		logger.Info("Optimization stopped", zap.Error(err))
	case err != nil:
		outcome = metrics.StatusFailed
		state.Status = StatusFailed
		state.Error = err.Error()
		logger.Error("Optimization failed", zap.Error(err))
	default:
		state.Status = StatusCompleted
		state.Progress = 1
		state.BestSolution = result.BestSolution
		logger.Info("Optimization completed",
			zap.Int("iterations", result.Iterations),
			zap.Float64("best_fitness", result.BestSolution.Value),
		)
	}
	if s.metrics != nil {
		s.metrics.RunFinished(state.Problem, outcome, time.Since(start))
	}

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now
}

// optimizationStatus returns the current status and results of a job.
func (s *Server) optimizationStatus(id string) (map[string]interface{}, error) {
	if id == "" {
		return nil, invalidParams(fmt.Errorf("optimization_id is required"))
	}

	s.optimizationsMu.RLock()
	defer s.optimizationsMu.RUnlock()

	state, exists := s.optimizations[id]
	if !exists {
		return nil, errNotFound
	}

	response := map[string]interface{}{
		"optimization_id": state.ID,
		"problem":         state.Problem,
		"status":          state.Status,
		"progress":        state.Progress,
		"start_time":      state.StartTime.Format(time.RFC3339),
		"last_update":     state.LastUpdated.Format(time.RFC3339),
	}

	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.Error != "" {
		response["error"] = state.Error
	}
	if state.BestSolution != nil {
		response["best_solution"] = solutionJSON(state.BestSolution)
	}

	history := state.Optimizer.GetHistory()
	if len(history) > 0 {
		historyData := make([]map[string]interface{}, len(history))
		for i, eval := range history {
			entry := solutionJSON(eval.Solution)
			entry["iteration"] = eval.Iteration
			historyData[i] = entry
		}
		response["history"] = historyData
	}

	return response, nil
}

func solutionJSON(s *optimization.Solution) map[string]interface{} {
	params := make([]interface{}, len(s.Parameters))
	for i, v := range s.Parameters {
		params[i] = jsonFloat(v)
	}
	return map[string]interface{}{
		"parameters": params,
		"value":      jsonFloat(s.Value),
	}
}

// jsonFloat renders v in a form encoding/json accepts. A diverging run can
// reach non-finite values, which become "+Inf", "-Inf" or "NaN".
func jsonFloat(v float64) interface{} {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return v
}

// cancelOptimization cancels a pending or running job.
func (s *Server) cancelOptimization(id string) error {
	if id == "" {
		return invalidParams(fmt.Errorf("optimization_id is required"))
	}

	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	state, exists := s.optimizations[id]
	if !exists {
		return errNotFound
	}

	switch state.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return fmt.Errorf("cannot cancel optimization with status: %s", state.Status)
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}

	// A running job records its own end once Optimize returns.
	s.markCancelled(state)

	s.logger.Info("Optimization cancelled", zap.String("optimization_id", id))
	return nil
}

// markCancelled ends a job that never started running. The caller holds
// optimizationsMu.
func (s *Server) markCancelled(state *OptimizationState) {
	if state.Status != StatusPending {
		return
	}
	now := time.Now()
	state.Status = StatusCancelled
	state.EndTime = &now
	state.LastUpdated = now
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("Request error",
		zap.Int("code", code),
		zap.String("message", message),
	)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   rpcError{Code: code, Message: message},
		"id":      id,
	})
}

// Close cancels all jobs and waits for their goroutines to return.
func (s *Server) Close() error {
	s.optimizationsMu.Lock()
	for _, opt := range s.optimizations {
		if opt.CancelFunc != nil {
			opt.CancelFunc()
		}
	}
	s.optimizationsMu.Unlock()

	s.wg.Wait()
	return nil
}

// handleProblems lists the problems a job can target.
func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"problems": availableProblems(),
	})
}

// handleOptimize handles POST /api/v1/optimize for starting a new optimization
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": fmt.Sprintf("Invalid request body: %v", err),
		})
		return
	}

	result, err := s.startOptimization(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// handleStatus handles GET /api/v1/status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.optimizationStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, statusFor(err), map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCancel handles DELETE /api/v1/optimization/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.cancelOptimization(chi.URLParam(r, "id")); err != nil {
		writeJSON(w, statusFor(err), map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "cancellation requested",
	})
}

func statusFor(err error) int {
	if errors.Is(err, errNotFound) {
		return http.StatusNotFound
	}
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		return http.StatusBadRequest
	}
	return http.StatusConflict
}

// writeJSON encodes body before sending any header so an encoding failure
// still produces a well-formed 500 response.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{
			"error": fmt.Sprintf("encoding response: %v", err),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}
