/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sap-labs-oss/storeplatform/pkg/apierrors"
	"github.com/sap-labs-oss/storeplatform/pkg/eventbus"
	"github.com/sap-labs-oss/storeplatform/pkg/intent"
	"github.com/sap-labs-oss/storeplatform/pkg/ratelimit"
)

type handlers struct {
	svc         *intent.Service
	bus         *eventbus.Bus
	createLimit *ratelimit.PerIdentityLimiter
	deleteLimit *ratelimit.PerIdentityLimiter
	apiTimeout  time.Duration
}

type createRequest struct {
	Name   string `json:"name"`
	Engine string `json:"engine"`
	Owner  string `json:"owner,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type listResponse struct {
	Stores []intent.Snapshot `json:"stores"`
}

type logsResponse struct {
	Logs interface{} `json:"logs"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, apierrors.HTTPStatus(err), err.Error())
}

func (h *handlers) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.apiTimeout)
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	snap, _, err := h.svc.Create(ctx, req.Name, req.Engine, req.Owner, callerIdentity(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	stores, err := h.svc.List(ctx, callerIdentity(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Stores: stores})
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	snap, err := h.svc.Get(ctx, chi.URLParam(r, "name"), callerIdentity(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	if err := h.svc.Delete(ctx, chi.URLParam(r, "name"), callerIdentity(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) logs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	entries, err := h.svc.Logs(ctx, chi.URLParam(r, "name"), callerIdentity(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logsResponse{Logs: entries})
}

type healthResponse struct {
	Status string `json:"status"`
	Bus    string `json:"bus"`
}

// health reports liveness plus the event bus's status, per spec §6; the
// bus has no failure mode of its own to report degraded, so it is "ok"
// whenever the process is alive to answer.
func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Bus: "ok"})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// subscribe upgrades to a websocket connection and streams an initial
// snapshot of every visible store followed by live bus events, per the
// intent layer's Subscribe operation.
func (h *handlers) subscribe(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	result, err := h.svc.Subscribe(r.Context(), callerIdentity(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer result.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error(err, "error upgrading websocket connection")
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(result.Initial); err != nil {
		return
	}

	for ev := range result.Events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
