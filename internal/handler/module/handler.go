package module

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/praxislabs/praxis/backend/internal/model/module"
	"github.com/praxislabs/praxis/backend/pkg/utils"
)

// Handler serves the curriculum catalog.
type Handler struct {
	catalog module.Catalog
}

// New creates the module handler.
func New(catalog module.Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// RegisterRoutes registers the catalog routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleListModules)
}

func (h *Handler) handleListModules(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.catalog.List())
}
