package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"kraken-ladder-go/internal/config"
	"kraken-ladder-go/internal/models"
	"kraken-ladder-go/internal/persistence"
)

// PresetHandler manages the daily job presets.
//
// GET    /api/presets
// GET    /api/presets/{name}
// PUT    /api/presets/{name}
// DELETE /api/presets/{name}
type PresetHandler struct {
	repo    persistence.PresetRepository
	catalog Catalog
}

// NewPresetHandler creates a PresetHandler.
func NewPresetHandler(repo persistence.PresetRepository, catalog Catalog) *PresetHandler {
	return &PresetHandler{repo: repo, catalog: catalog}
}

func (h *PresetHandler) List(w http.ResponseWriter, _ *http.Request) {
	presets, err := h.repo.ListPresets()
	if err != nil {
		writeError(w, err)
		return
	}
	if presets == nil {
		presets = []models.Preset{}
	}
	writeJSON(w, http.StatusOK, presets)
}

func (h *PresetHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.LoadPreset(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		writeError(w, persistence.ErrPresetNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Put creates or replaces a preset. The name in the path wins over the body.
func (h *PresetHandler) Put(w http.ResponseWriter, r *http.Request) {
	var p models.Preset
	if err := decodeBody(r, &p); err != nil {
		writeError(w, err)
		return
	}
	p.Name = strings.ToUpper(strings.TrimSpace(mux.Vars(r)["name"]))

	inst, err := h.catalog.Lookup(p.Pair)
	if err != nil {
		writeError(w, err)
		return
	}
	p.Pair = inst.Pair
	p.Leverage = p.Leverage.Clamp(inst.MaxLeverage)
	if err := config.ValidatePreset(p); err != nil {
		writeError(w, badRequest(err.Error()))
		return
	}

	if err := h.repo.SavePreset(p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PresetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeletePreset(mux.Vars(r)["name"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
