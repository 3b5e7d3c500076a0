// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// handlers_admin.go - administrative endpoints, platform tokens only.
//
// Everything here mutates hub configuration or inspects operational logs:
// clients, tokens, vendor services, monitored resources, IP rules, delivery
// reopening, call/sync/security logs. Plaintext client tokens are only
// returned once, at creation.

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tramitahub/tramita/internal/auth"
	"github.com/tramitahub/tramita/internal/database"
	"github.com/tramitahub/tramita/internal/logging"
	"github.com/tramitahub/tramita/internal/models"
	"github.com/tramitahub/tramita/internal/registrar"
	"github.com/tramitahub/tramita/internal/validation"
)

// ---- Clients ----

// CreateClientRequest is the body for registering a downstream client system.
type CreateClientRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// ClientCreate registers a new downstream client system.
func (h *Handler) ClientCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid request body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, verr.Error(), verr.Fields())
		return
	}

	client := &models.Client{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := h.db.CreateClient(r.Context(), client); err != nil {
		logging.Error().Err(err).Msg("Client creation failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to create client", nil)
		return
	}

	respondJSON(w, http.StatusCreated, &models.APIResponse{Data: client})
}

// ClientGet returns one client system.
func (h *Handler) ClientGet(w http.ResponseWriter, r *http.Request) {
	client, err := h.db.GetClient(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to load client", nil)
		return
	}
	if client == nil {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "client not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: client})
}

// ---- Tokens ----

// TokenCreate mints a new API token for a client. The plaintext token is
// only present in this one response.
func (h *Handler) TokenCreate(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	var req auth.CreateTokenRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid request body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, verr.Error(), verr.Fields())
		return
	}

	client, err := h.db.GetClient(r.Context(), clientID)
	if err != nil || client == nil {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "client not found", nil)
		return
	}

	token, plaintext, err := h.tokens.Create(r.Context(), clientID, &req)
	if err != nil {
		logging.Error().Err(err).Str("client_id", clientID).Msg("Token creation failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to create token", nil)
		return
	}

	respondJSON(w, http.StatusCreated, &models.APIResponse{
		Data: map[string]interface{}{
			"token":     token,
			"plaintext": plaintext,
		},
	})
}

// TokenList lists a client's tokens. Hashes are never included.
func (h *Handler) TokenList(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokens.List(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to list tokens", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: tokens})
}

// TokenRevoke revokes a token immediately.
func (h *Handler) TokenRevoke(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")
	if err := h.tokens.Revoke(r.Context(), tokenID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "token not found", nil)
			return
		}
		logging.Error().Err(err).Str("token_id", tokenID).Msg("Token revocation failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to revoke token", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: map[string]interface{}{"revoked": true}})
}

// ---- Entitlements ----

// EntitlementUpsertRequest toggles a client's entitlement to a service.
type EntitlementUpsertRequest struct {
	Active bool `json:"active"`
}

// EntitlementUpsert grants or suspends a client's entitlement to one vendor
// service.
func (h *Handler) EntitlementUpsert(w http.ResponseWriter, r *http.Request) {
	var req EntitlementUpsertRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid request body", nil)
		return
	}

	entitlement := &models.ClientService{
		ClientID:  chi.URLParam(r, "clientID"),
		ServiceID: chi.URLParam(r, "serviceID"),
		Active:    req.Active,
		CreatedAt: time.Now(),
	}
	if err := h.db.UpsertClientService(r.Context(), entitlement); err != nil {
		logging.Error().Err(err).Msg("Entitlement upsert failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to store entitlement", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: entitlement})
}

// ---- Vendor services ----

// CreateServiceRequest is the body for configuring a vendor service.
type CreateServiceRequest struct {
	Name                 string `json:"name" validate:"required,min=1,max=200"`
	Kind                 string `json:"kind" validate:"required,oneof=processes distributions publications"`
	Dialect              string `json:"dialect" validate:"required,oneof=soap rest"`
	BaseURL              string `json:"base_url" validate:"required,url"`
	RelationalName       string `json:"relational_name" validate:"required"`
	Token                string `json:"token" validate:"required"`
	CredentialsInHeaders bool   `json:"credentials_in_headers"`
}

// ServiceCreate configures a new vendor service endpoint.
func (h *Handler) ServiceCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid request body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, verr.Error(), verr.Fields())
		return
	}

	now := time.Now()
	service := &models.VendorService{
		ID:                   uuid.New().String(),
		Name:                 req.Name,
		Kind:                 models.ResourceKind(req.Kind),
		Dialect:              models.Dialect(req.Dialect),
		BaseURL:              req.BaseURL,
		RelationalName:       req.RelationalName,
		Token:                req.Token,
		CredentialsInHeaders: req.CredentialsInHeaders,
		Active:               true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := service.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}
	if err := h.db.CreateVendorService(r.Context(), service); err != nil {
		logging.Error().Err(err).Msg("Service creation failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to create service", nil)
		return
	}

	respondJSON(w, http.StatusCreated, &models.APIResponse{Data: service})
}

// ServiceList lists active vendor services, optionally filtered by kind.
func (h *Handler) ServiceList(w http.ResponseWriter, r *http.Request) {
	kind := models.ResourceKind(r.URL.Query().Get("kind"))
	if kind != "" && !models.IsValidResourceKind(kind) {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "unknown resource kind", nil)
		return
	}

	services, err := h.db.ListActiveVendorServices(r.Context(), kind)
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to list services", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: services})
}

// ServiceSetActive enables or disables a vendor service.
func (h *Handler) ServiceSetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid request body", nil)
		return
	}

	serviceID := chi.URLParam(r, "serviceID")
	if err := h.db.SetVendorServiceActive(r.Context(), serviceID, req.Active); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "service not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to update service", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: map[string]interface{}{"active": req.Active}})
}

// ServiceSyncNow triggers an immediate sync sweep for one service. Returns
// 409 when a run for the service is already in flight.
func (h *Handler) ServiceSyncNow(w http.ResponseWriter, r *http.Request) {
	service, err := h.db.GetVendorService(r.Context(), chi.URLParam(r, "serviceID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to load service", nil)
		return
	}
	if service == nil {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "service not found", nil)
		return
	}

	if !h.scheduler.RunNow(r.Context(), service) {
		respondError(w, http.StatusConflict, models.ErrCodeProtocolViolation,
			"a sync for this service is already running", nil)
		return
	}
	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Data: map[string]interface{}{"service_id": service.ID, "started": true},
	})
}

// ---- Monitored resources ----

// RegisterResourceRequest asks the hub to monitor a case or term for a
// client. Exactly one of case_number or term must be set.
type RegisterResourceRequest struct {
	ServiceID  string `json:"service_id" validate:"required,uuid"`
	CaseNumber string `json:"case_number" validate:"omitempty,cnj"`
	Term       string `json:"term" validate:"omitempty,min=2,max=200"`
	TermType   string `json:"term_type" validate:"omitempty,oneof=name oab other"`
}

// ResourceRegister registers a monitored resource for a client, reusing an
// existing registration when one exists (one vendor registration per
// natural key, refcounted by client links).
func (h *Handler) ResourceRegister(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	var req RegisterResourceRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid request body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, verr.Error(), verr.Fields())
		return
	}
	if (req.CaseNumber == "") == (req.Term == "") {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation,
			"exactly one of case_number or term is required", nil)
		return
	}

	service, err := h.db.GetVendorService(r.Context(), req.ServiceID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to load service", nil)
		return
	}
	if service == nil {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "service not found", nil)
		return
	}

	resource, err := h.registrar.RegisterForClient(r.Context(), clientID, service, registrar.Registration{
		CaseNumber: req.CaseNumber,
		Term:       req.Term,
		TermType:   models.TermType(req.TermType),
	})
	if err != nil {
		logging.Error().Err(err).
			Str("client_id", clientID).
			Str("service_id", service.ID).
			Msg("Resource registration failed")
		respondError(w, http.StatusBadGateway, models.ErrCodeVendorFailure,
			"vendor registration failed", nil)
		return
	}

	respondJSON(w, http.StatusCreated, &models.APIResponse{Data: resource})
}

// ResourceRelease unlinks a client from a resource. The vendor-side removal
// only fires when the last link is gone.
func (h *Handler) ResourceRelease(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	resourceID := chi.URLParam(r, "resourceID")

	err := h.registrar.ReleaseForClient(r.Context(), clientID, resourceID)
	switch {
	case errors.Is(err, registrar.ErrResourceNotFound):
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "resource not found", nil)
	case errors.Is(err, registrar.ErrNotLinked):
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "client is not linked to this resource", nil)
	case err != nil:
		logging.Error().Err(err).
			Str("client_id", clientID).
			Str("resource_id", resourceID).
			Msg("Resource release failed")
		respondError(w, http.StatusBadGateway, models.ErrCodeVendorFailure, "vendor removal failed", nil)
	default:
		respondJSON(w, http.StatusOK, &models.APIResponse{Data: map[string]interface{}{"released": true}})
	}
}

// ResourceList lists the resources a client is linked to.
func (h *Handler) ResourceList(w http.ResponseWriter, r *http.Request) {
	kind := models.ResourceKind(r.URL.Query().Get("kind"))
	if kind != "" && !models.IsValidResourceKind(kind) {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "unknown resource kind", nil)
		return
	}

	resources, err := h.db.ListResourcesForClient(r.Context(), chi.URLParam(r, "clientID"), kind)
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to list resources", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: resources})
}

// ---- Delivery administration ----

// ReopenRequest names the records to redeliver; empty means the whole
// delivered history for the (client, kind) pair.
type ReopenRequest struct {
	VendorIDs []int64 `json:"vendor_ids"`
}

// DeliveryReopen deletes delivery marks so records are served again. A
// destructive operation, audit-logged with the acting platform subject.
func (h *Handler) DeliveryReopen(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentity(r)
	clientID := chi.URLParam(r, "clientID")
	kind := models.ResourceKind(chi.URLParam(r, "kind"))
	if !models.IsValidResourceKind(kind) {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "unknown resource kind", nil)
		return
	}

	var req ReopenRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid request body", nil)
		return
	}

	actor := "platform"
	if identity != nil && identity.Subject != "" {
		actor = identity.Subject
	}
	reopened, err := h.delivery.Reopen(r.Context(), actor, clientID, kind, req.VendorIDs)
	if err != nil {
		logging.Error().Err(err).Str("client_id", clientID).Msg("Delivery reopen failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to reopen deliveries", nil)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Data: map[string]interface{}{"reopened_records": reopened},
	})
}

// DeliveryPending returns the outstanding unconfirmed batch for inspection,
// without touching the cursor.
func (h *Handler) DeliveryPending(w http.ResponseWriter, r *http.Request) {
	kind := models.ResourceKind(chi.URLParam(r, "kind"))
	if !models.IsValidResourceKind(kind) {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "unknown resource kind", nil)
		return
	}

	records, err := h.delivery.PendingBatch(r.Context(), chi.URLParam(r, "clientID"), kind)
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to load pending batch", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: records})
}

// ---- IP rules ----

// CreateIPRuleRequest adds a block or allow rule, optionally scoped to one
// client and optionally expiring. Value may be a single address, a CIDR
// prefix, or a class-style dotted prefix.
type CreateIPRuleRequest struct {
	ClientID  string     `json:"client_id" validate:"omitempty,uuid"`
	Value     string     `json:"value" validate:"required,min=1,max=64"`
	Action    string     `json:"action" validate:"required,oneof=block allow"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// IPRuleCreate adds an IP rule.
func (h *Handler) IPRuleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateIPRuleRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid request body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, verr.Error(), verr.Fields())
		return
	}

	rule := &models.IPRule{
		ID:        uuid.New().String(),
		ClientID:  req.ClientID,
		Value:     req.Value,
		Action:    models.IPRuleAction(req.Action),
		ExpiresAt: req.ExpiresAt,
		CreatedAt: time.Now(),
	}
	if err := h.db.CreateIPRule(r.Context(), rule); err != nil {
		logging.Error().Err(err).Msg("IP rule creation failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to create IP rule", nil)
		return
	}
	respondJSON(w, http.StatusCreated, &models.APIResponse{Data: rule})
}

// IPRuleDelete removes an IP rule.
func (h *Handler) IPRuleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteIPRule(r.Context(), chi.URLParam(r, "ruleID")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "IP rule not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to delete IP rule", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: map[string]interface{}{"deleted": true}})
}

// ---- Operational logs ----

// CallLogList returns vendor call log rows, newest first.
func (h *Handler) CallLogList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.db.ListCallLogs(r.Context(), r.URL.Query().Get("service_id"), queryLimit(r, 100))
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to list call logs", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: entries})
}

// SyncRunList returns sync run history, newest first.
func (h *Handler) SyncRunList(w http.ResponseWriter, r *http.Request) {
	runs, err := h.db.ListSyncRuns(r.Context(), r.URL.Query().Get("service_id"), queryLimit(r, 100))
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to list sync runs", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: runs})
}

// SecurityEventList returns the security audit trail, newest first.
func (h *Handler) SecurityEventList(w http.ResponseWriter, r *http.Request) {
	reason := models.SecurityEventReason(r.URL.Query().Get("reason"))
	events, err := h.db.ListSecurityEvents(r.Context(), reason, queryLimit(r, 100))
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to list security events", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: events})
}

// MetricsSummary aggregates request metrics per endpoint over the trailing
// window (?hours=, default 24).
func (h *Handler) MetricsSummary(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 24*30 {
			hours = parsed
		}
	}

	summary, err := h.db.SummarizeRequestMetrics(r.Context(), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to summarize metrics", nil)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{Data: summary})
}

// queryLimit parses ?limit= with a default, capped at 1000.
func queryLimit(r *http.Request, def int) int {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 1000 {
		limit = 1000
	}
	return limit
}
