package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lostlink/matcher/internal/metrics"
	gen "github.com/lostlink/matcher/internal/transport/api"
)

// NewRouter mounts the server on a chi router with the standard middleware stack.
func NewRouter(server gen.ServerInterface, apiKeys []string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(log))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEvent(log))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())
	r.MethodNotAllowed(MethodNotAllowed)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, gen.ErrorResponseCodeBadRequest, "route not found")
	})

	return gen.HandlerWithOptions(server, gen.ChiServerOptions{
		BaseRouter:       r,
		ErrorHandlerFunc: HandleBindError,
	})
}
