package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"originmesh/internal/orchestrator"
	"originmesh/internal/orchestrator/config"
)

// adminHandler exposes the Orchestrator's reconciliation and application
// lifecycle operations as a small JSON/YAML admin API, replacing the
// teacher's storage-backed channel/profile handlers now that the running
// state is the VirtualHost tree rather than a user database.
type adminHandler struct {
	orch *orchestrator.Orchestrator
}

func newAdminHandler(orch *orchestrator.Orchestrator) *adminHandler {
	return &adminHandler{orch: orch}
}

func (h *adminHandler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// applyOriginMap reconciles the running VirtualHost tree against a YAML
// document in the same virtualHosts shape config.LoadHostConfigsFile reads
// at startup, so the same declarative tree can be pushed at runtime.
func (h *adminHandler) applyOriginMap(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeMiddlewareError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return
	}
	hosts, err := config.LoadHostConfigs(body)
	if err != nil {
		writeMiddlewareError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.orch.ApplyOriginMap(r.Context(), hosts); err != nil {
		writeMiddlewareError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type originView struct {
	Location string `json:"location"`
	Scheme   string `json:"scheme"`
	URLs     []string `json:"urls"`
	State    string `json:"state"`
}

type domainView struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

type applicationView struct {
	ID           uint64 `json:"id"`
	ComposedName string `json:"composed_name"`
}

type virtualHostView struct {
	Name         string             `json:"name"`
	State        string             `json:"state"`
	Domains      []domainView       `json:"domains"`
	Origins      []originView       `json:"origins"`
	Applications []applicationView  `json:"applications"`
}

func (h *adminHandler) getVirtualHost(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "vhost")
	vhost, ok := h.orch.VirtualHost(name)
	if !ok {
		writeMiddlewareError(w, http.StatusNotFound, "virtual host not found")
		return
	}

	view := virtualHostView{
		Name:  vhost.Name,
		State: vhost.State.String(),
	}
	for _, domain := range vhost.Domains {
		view.Domains = append(view.Domains, domainView{Name: domain.Name, State: domain.State.String()})
	}
	for _, origin := range vhost.Origins {
		view.Origins = append(view.Origins, originView{
			Location: origin.Location,
			Scheme:   origin.Scheme,
			URLs:     origin.URLs,
			State:    origin.State.String(),
		})
	}
	for _, app := range vhost.Apps {
		view.Applications = append(view.Applications, applicationView{ID: uint64(app.ID), ComposedName: app.ComposedName})
	}

	writeJSON(w, http.StatusOK, view)
}

type createApplicationRequest struct {
	Name string `json:"name"`
}

type applicationResponse struct {
	ID           uint64 `json:"id"`
	ComposedName string `json:"composed_name"`
	VHostName    string `json:"vhost_name"`
}

func (h *adminHandler) createApplication(w http.ResponseWriter, r *http.Request) {
	vhostName := chi.URLParam(r, "vhost")

	var req createApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMiddlewareError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}
	if req.Name == "" {
		writeMiddlewareError(w, http.StatusBadRequest, "name is required")
		return
	}

	app, result := h.orch.CreateApplication(r.Context(), vhostName, orchestrator.AppConfig{Name: req.Name})
	if result != orchestrator.Succeeded {
		writeMiddlewareError(w, statusForResult(result), result.String())
		return
	}

	writeJSON(w, http.StatusCreated, applicationResponse{
		ID:           uint64(app.ID),
		ComposedName: app.ComposedName,
		VHostName:    app.VHostName,
	})
}

func (h *adminHandler) deleteApplication(w http.ResponseWriter, r *http.Request) {
	vhostName := chi.URLParam(r, "vhost")
	id, err := strconv.ParseUint(chi.URLParam(r, "appID"), 10, 64)
	if err != nil {
		writeMiddlewareError(w, http.StatusBadRequest, "invalid application id")
		return
	}

	result := h.orch.DeleteApplication(r.Context(), vhostName, orchestrator.ApplicationID(id))
	if result != orchestrator.Succeeded {
		writeMiddlewareError(w, statusForResult(result), result.String())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pullRequest struct {
	ApplicationID uint64 `json:"application_id"`
	StreamName    string `json:"stream_name"`
	Location      string `json:"location"`
}

type pullResponse struct {
	StreamID   string `json:"stream_id"`
	StreamName string `json:"stream_name"`
}

// requestPull pulls streamName into vhost/app from the Origin matching
// location, sharing the Orchestrator's singleflight-coalesced
// PullCoordinator with any ingest-triggered pull racing for the same key.
func (h *adminHandler) requestPull(w http.ResponseWriter, r *http.Request) {
	vhostName := chi.URLParam(r, "vhost")
	vhost, ok := h.orch.VirtualHost(vhostName)
	if !ok {
		writeMiddlewareError(w, http.StatusNotFound, "virtual host not found")
		return
	}

	var req pullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMiddlewareError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}

	app, ok := vhost.Apps[orchestrator.ApplicationID(req.ApplicationID)]
	if !ok {
		writeMiddlewareError(w, http.StatusNotFound, "application not found")
		return
	}

	handle, err := h.orch.PullCoordinator().RequestPullStreamForLocation(r.Context(), h.orch.Registry(), vhost, app, req.StreamName, req.Location)
	if err != nil {
		writeMiddlewareError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, pullResponse{StreamID: handle.ID(), StreamName: handle.Name()})
}

func statusForResult(result orchestrator.Result) int {
	switch result {
	case orchestrator.NotExists:
		return http.StatusNotFound
	case orchestrator.Exists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
