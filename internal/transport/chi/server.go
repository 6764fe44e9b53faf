package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lostlink/matcher/internal/domain"
	domitem "github.com/lostlink/matcher/internal/domain/item"
	gen "github.com/lostlink/matcher/internal/transport/api"
	"github.com/lostlink/matcher/internal/usecase/dispatch"
	healthuc "github.com/lostlink/matcher/internal/usecase/health"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Items is the item storage used by the HTTP layer.
type Items interface {
	Create(ctx context.Context, it *domitem.Item) error
	Get(ctx context.Context, id string) (domitem.Item, error)
}

// Scheduler runs matching off the request goroutine.
type Scheduler interface {
	Submit(itemID string) <-chan dispatch.Outcome
}

// Server implements api.ServerInterface for the chi router.
type Server struct {
	gen.Unimplemented
	items         Items
	scheduler     Scheduler
	health        *healthuc.Service
	logger        *zap.Logger
	now           func() time.Time
	newID         func() string
	errorHandlers []errorHandler
}

var _ gen.ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(items Items, scheduler Scheduler, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		items:     items,
		scheduler: scheduler,
		health:    health,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrItemNotFound, http.StatusNotFound, gen.ErrorResponseCodeItemNotFound),
		sentinelHandler(domain.ErrInvalidItem, http.StatusBadRequest, gen.ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, gen.ErrorResponseCodeVectorDimMismatch),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, gen.ErrorResponseCodeEmbeddingProviderError),
		sentinelHandler(dispatch.ErrClosed, http.StatusServiceUnavailable, gen.ErrorResponseCodeUnavailable),
	}
	return s
}

// TriggerMatch handles POST /api/v1/match. It waits for the run and reports the match count.
func (s *Server) TriggerMatch(w http.ResponseWriter, r *http.Request) {
	var req gen.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ItemId) == "" {
		writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeBadRequest, "item_id is required")
		return
	}
	id, err := uuid.Parse(req.ItemId)
	if err != nil {
		writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeBadRequest, "item_id must be a UUID")
		return
	}

	select {
	case out := <-s.scheduler.Submit(id.String()):
		if out.Err != nil {
			s.handleDomainError(w, out.Err)
			return
		}
		writeJSON(w, http.StatusOK, gen.MatchResponse{Success: true, Matches: len(out.Result.Matches)})
	case <-r.Context().Done():
		// Client went away; the run continues in the background.
		s.logger.Info("match request abandoned", zap.String("item_id", id.String()))
	}
}

// CreateItem handles POST /api/v1/items. Matching is scheduled and not awaited.
func (s *Server) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req gen.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	kind, err := domitem.ParseKind(string(req.Kind))
	if err != nil {
		writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeValidationFailed, "kind must be Lost or Found")
		return
	}

	it, err := domitem.New(s.newID(), kind, domitem.Details{
		Title:       req.Title,
		Description: deref(req.Description),
		Category:    deref(req.Category),
		Location:    deref(req.Location),
		OccurredAt:  deref(req.Date),
	}, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeValidationFailed, err.Error())
		return
	}

	if err := s.items.Create(r.Context(), &it); err != nil {
		s.handleDomainError(w, err)
		return
	}

	s.scheduler.Submit(it.ID())
	writeJSON(w, http.StatusCreated, itemToGen(&it))
}

// GetItem handles GET /api/v1/items/{id}.
func (s *Server) GetItem(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	it, err := s.items.Get(r.Context(), id.String())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemToGen(&it))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]gen.HealthResponseChecks)
	for k, v := range report.Checks {
		checks[k] = gen.HealthResponseChecks(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, gen.HealthResponse{
		Status: gen.HealthResponseStatus(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// HandleBindError answers requests whose parameters failed to bind.
func HandleBindError(w http.ResponseWriter, _ *http.Request, err error) {
	writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeBadRequest, err.Error())
}

// MethodNotAllowed answers requests using a method a route does not serve.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, gen.ErrorResponseCodeMethodNotAllowed,
		"method "+r.Method+" not allowed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code gen.ErrorResponseCode, message string) {
	writeJSON(w, status, gen.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrItemNotFound,
		domain.ErrInvalidItem,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		dispatch.ErrClosed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code gen.ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, gen.ErrorResponseCodeInternalError, "internal error")
}

func itemToGen(it *domitem.Item) gen.ItemResponse {
	d := it.Details()
	id, _ := uuid.Parse(it.ID())

	matches := make([]gen.MatchEntry, len(it.Matches()))
	for i, m := range it.Matches() {
		reasons := m.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		matches[i] = gen.MatchEntry{Id: m.TargetID, Title: m.DisplayTitle, Score: m.Score, Reasons: reasons}
	}

	return gen.ItemResponse{
		Id:          id,
		Kind:        gen.ItemKind(it.Kind()),
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Location:    optional(d.Location),
		Date:        optional(d.OccurredAt),
		CreatedAt:   it.CreatedAt(),
		Embedded:    it.HasEmbedding(),
		Matches:     matches,
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
