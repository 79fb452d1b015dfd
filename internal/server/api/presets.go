package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ayusman/handchord/internal/store"
)

// PresetHandler serves the preset library.
type PresetHandler struct {
	store *store.Store
}

// NewPresetHandler creates a PresetHandler over s.
func NewPresetHandler(s *store.Store) *PresetHandler {
	return &PresetHandler{store: s}
}

// Register adds the preset routes to r.
func (h *PresetHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/presets", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/presets", h.create).Methods(http.MethodPost)
	r.HandleFunc("/api/presets/active", h.active).Methods(http.MethodGet)
	r.HandleFunc("/api/presets/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/api/presets/{id}", h.update).Methods(http.MethodPut)
	r.HandleFunc("/api/presets/{id}", h.delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/presets/{id}/activate", h.activate).Methods(http.MethodPost)
}

type listPresetsResponse struct {
	Presets []*store.Preset `json:"presets"`
	Active  string          `json:"active,omitempty"`
}

// list handles GET /api/presets.
func (h *PresetHandler) list(w http.ResponseWriter, r *http.Request) {
	presets, err := h.store.Presets().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list presets")
		return
	}
	if presets == nil {
		presets = []*store.Preset{}
	}

	active, _ := h.store.Settings().Get(store.SettingActivePreset)
	writeJSON(w, http.StatusOK, listPresetsResponse{Presets: presets, Active: active})
}

// get handles GET /api/presets/{id}.
func (h *PresetHandler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// active handles GET /api/presets/active.
func (h *PresetHandler) active(w http.ResponseWriter, r *http.Request) {
	name, err := h.store.Settings().Get(store.SettingActivePreset)
	if errors.Is(err, store.ErrNotFound) {
		name = store.DefaultPresetName
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}

	p, err := h.store.Presets().GetByName(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get preset")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// create handles POST /api/presets.
func (h *PresetHandler) create(w http.ResponseWriter, r *http.Request) {
	var p store.Preset
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	p.ID = ""

	if err := h.store.Presets().Create(&p); err != nil {
		if errors.Is(err, store.ErrExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, &p)
}

// update handles PUT /api/presets/{id}.
func (h *PresetHandler) update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.lookup(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var p store.Preset
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt

	if err := h.store.Presets().Update(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, &p)
}

// delete handles DELETE /api/presets/{id}.
func (h *PresetHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Presets().Delete(mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete preset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// activate handles POST /api/presets/{id}/activate. The preset is loaded the
// next time the instrument starts.
func (h *PresetHandler) activate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if err := h.store.Settings().Set(store.SettingActivePreset, p.Name); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": p.Name})
}

func (h *PresetHandler) lookup(w http.ResponseWriter, id string) (*store.Preset, bool) {
	p, err := h.store.Presets().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get preset")
		return nil, false
	}
	return p, true
}
