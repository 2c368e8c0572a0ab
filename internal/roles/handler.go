package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/argus-vms/argus-cloud/internal/shared"
)

// Handler serves the role catalog so panels can build assignment
// dropdowns without hardcoding the hierarchy.
type Handler struct {
	logger *slog.Logger
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

type roleResponse struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Rank       int    `json:"rank"`
	Assignable bool   `json:"assignable"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	catalog := All()
	out := make([]roleResponse, 0, len(catalog))
	for _, role := range catalog {
		out = append(out, roleResponse{
			Name:  string(role),
			Label: Label(string(role)),
			Rank:  Rank(string(role)),
			// super_admin is granted out of band, never through the API.
			Assignable: role != SuperAdmin,
		})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"data": out})
}
