package handler

import (
	"net/http"
	"strings"

	"restaurant-system/internal/common/httpx"
	"restaurant-system/internal/domain"
	"restaurant-system/internal/microservices/gateway/service"
	notificator "restaurant-system/internal/microservices/notificator/service"
)

type ConnectionHandler struct {
	registry service.RegistryServiceInterface
	hub      *service.Hub
	fanout   notificator.FanoutServiceInterface
}

func NewConnectionHandler(reg service.RegistryServiceInterface, hub *service.Hub, fanout notificator.FanoutServiceInterface) *ConnectionHandler {
	return &ConnectionHandler{registry: reg, hub: hub, fanout: fanout}
}

// Register adds the routes to mux.
func (h *ConnectionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.hub.ServeWS)
	mux.HandleFunc("POST /connections", h.Connect)
	mux.HandleFunc("POST /connections/{connectionId}/ping", h.Ping)
	mux.HandleFunc("DELETE /connections/{connectionId}", h.Disconnect)
	mux.HandleFunc("POST /tenants/{tenantId}/events", h.Publish)
}

// Connect registers a connection without upgrading; the push transport for
// such connections lives outside this process.
func (h *ConnectionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, err := h.registry.Connect(r.Context(), domain.ConnectRequest{
		TenantID: httpx.TenantID(r), Role: q.Get("role"), UserID: q.Get("userId"),
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}

func (h *ConnectionHandler) Ping(w http.ResponseWriter, r *http.Request) {
	c, err := h.registry.Ping(r.Context(), r.PathValue("connectionId"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Disconnect(r.Context(), r.PathValue("connectionId")); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type publishRequest struct {
	Type   string             `json:"type"`
	Detail domain.EventDetail `json:"detail"`
}

// Publish fans an arbitrary event out to the tenant.
func (h *ConnectionHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation_error", "type is required")
		return
	}
	res, err := h.fanout.Publish(r.Context(), r.PathValue("tenantId"), req.Type, req.Detail)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
