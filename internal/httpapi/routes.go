package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quizparty/party-backend/internal/registry"
	"github.com/quizparty/party-backend/internal/ws"
)

func SetupRoutes(reg *registry.Registry, hub *ws.Hub, publicURL string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Health)
	r.Get("/api/health", Health)
	r.Get("/api/parties", ListParties(reg))
	r.Get("/api/parties/{code}/qr", PartyQR(reg, publicURL))
	r.Get("/ws", ws.Handler(reg, hub, log))
	return r
}
