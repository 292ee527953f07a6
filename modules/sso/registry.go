package sso

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	ssocore "github.com/dmitrymomot/ssokit/pkg/sso"
)

// RegistryService exposes module registration. These endpoints are for
// deployment tooling and must be mounted behind operator authentication.
type RegistryService struct {
	registry *ssocore.Service
}

// NewRegistryService creates the module registry HTTP service.
func NewRegistryService(registry *ssocore.Service) *RegistryService {
	return &RegistryService{registry: registry}
}

func (s *RegistryService) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.register)
	r.Delete("/{moduleID}", s.deactivate)

	return r
}

type registerModuleRequest struct {
	ModuleID       string   `json:"module_id"`
	Domain         string   `json:"domain"`
	AllowedOrigins []string `json:"allowed_origins"`
	PublicKey      string   `json:"public_key,omitempty"`
}

func (s *RegistryService) register(w http.ResponseWriter, r *http.Request) {
	var req registerModuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ModuleID == "" || req.Domain == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "module_id and domain are required"})
		return
	}

	module, err := s.registry.RegisterModule(r.Context(), req.ModuleID, req.Domain, req.AllowedOrigins, req.PublicKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, module)
}

func (s *RegistryService) deactivate(w http.ResponseWriter, r *http.Request) {
	moduleID := chi.URLParam(r, "moduleID")

	if err := s.registry.DeactivateModule(r.Context(), moduleID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
