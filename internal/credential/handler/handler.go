package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"edureg/internal/credential/models"
	registryservice "edureg/internal/credential/service"
	id "edureg/pkg/domain"
	dErrors "edureg/pkg/domain-errors"
	"edureg/pkg/platform/httputil"
	"edureg/pkg/platform/validation"
	"edureg/pkg/requestcontext"
)

// Service defines the registry operations used by the handler.
type Service interface {
	IssueCredential(ctx context.Context, req models.IssueRequest) (id.CredentialID, error)
	VerifyCredential(ctx context.Context, credentialID id.CredentialID) (*models.VerifyResult, error)
	GetCredential(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	RevokeCredential(ctx context.Context, credentialID id.CredentialID) error
	AuthorizeInstitution(ctx context.Context, identity id.Identity) error
	RevokeInstitutionAccess(ctx context.Context, identity id.Identity) error
	IsAuthorized(ctx context.Context, identity id.Identity) (bool, error)
	State(ctx context.Context) (models.Registry, error)
}

// Handler wires registry endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registry handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the read-only endpoints anyone may call.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/credentials/{id}", h.HandleGetCredential)
	r.Get("/credentials/{id}/verify", h.HandleVerifyCredential)
	r.Get("/institutions/{identity}", h.HandleGetInstitution)
	r.Get("/registry", h.HandleGetRegistry)
}

// RegisterProtected mounts the mutating endpoints. The router must authenticate
// the caller before these handlers run.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/credentials", h.HandleIssueCredential)
	r.Post("/credentials/{id}/revoke", h.HandleRevokeCredential)
	r.Post("/institutions", h.HandleAuthorizeInstitution)
	r.Delete("/institutions/{identity}", h.HandleRevokeInstitution)
}

// IssueRequest is the request body for credential issuance.
type IssueRequest struct {
	StudentName     string `json:"student_name"`
	CourseName      string `json:"course_name"`
	InstitutionName string `json:"institution_name"`
	CredentialHash  string `json:"credential_hash"`
}

// Validate enforces size limits. Content is free-form and may be empty.
func (r *IssueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.CheckEachStringLength([][2]string{
		{"student_name", r.StudentName},
		{"course_name", r.CourseName},
		{"institution_name", r.InstitutionName},
	}, validation.MaxNameLength); err != nil {
		return err
	}
	return validation.CheckStringLength("credential_hash", r.CredentialHash, validation.MaxCredentialHashLength)
}

// IssueResponse is the response body for credential issuance.
type IssueResponse struct {
	CredentialID uint64 `json:"credential_id"`
}

// CredentialResponse is the full credential record.
type CredentialResponse struct {
	CredentialID    uint64     `json:"credential_id"`
	StudentName     string     `json:"student_name"`
	CourseName      string     `json:"course_name"`
	InstitutionName string     `json:"institution_name"`
	CredentialHash  string     `json:"credential_hash"`
	Issuer          string     `json:"issuer"`
	IssueDate       time.Time  `json:"issue_date"`
	IsValid         bool       `json:"is_valid"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
}

// VerifyResponse is the public status of a credential.
type VerifyResponse struct {
	IsValid         bool      `json:"is_valid"`
	StudentName     string    `json:"student_name"`
	CourseName      string    `json:"course_name"`
	InstitutionName string    `json:"institution_name"`
	IssueDate       time.Time `json:"issue_date"`
}

// RevokeResponse is the response body for credential revocation.
type RevokeResponse struct {
	CredentialID uint64 `json:"credential_id"`
	IsValid      bool   `json:"is_valid"`
}

// AuthorizeRequest is the request body for institution authorization.
type AuthorizeRequest struct {
	Identity string `json:"identity"`

	parsedIdentity id.Identity
}

// Validate validates and parses the authorization request.
func (r *AuthorizeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Identity == "" {
		return dErrors.New(dErrors.CodeValidation, "identity is required")
	}
	parsed, err := id.ParseIdentity(r.Identity)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, err.Error())
	}
	r.parsedIdentity = parsed
	return nil
}

// ParsedIdentity returns the validated identity.
func (r *AuthorizeRequest) ParsedIdentity() id.Identity {
	return r.parsedIdentity
}

// InstitutionResponse reports an identity's authorization.
type InstitutionResponse struct {
	Identity   string `json:"identity"`
	Authorized bool   `json:"authorized"`
}

// RegistryResponse reports registry-wide state.
type RegistryResponse struct {
	Owner           string `json:"owner"`
	CredentialCount uint64 `json:"credential_count"`
}

// HandleIssueCredential handles POST /credentials.
func (h *Handler) HandleIssueCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	credentialID, err := h.service.IssueCredential(ctx, models.IssueRequest{
		StudentName:     req.StudentName,
		CourseName:      req.CourseName,
		InstitutionName: req.InstitutionName,
		CredentialHash:  req.CredentialHash,
	})
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to issue credential", "caller", caller)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, IssueResponse{CredentialID: uint64(credentialID)})
}

// HandleGetCredential handles GET /credentials/{id}.
func (h *Handler) HandleGetCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credentialID, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	credential, err := h.service.GetCredential(ctx, credentialID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to get credential", "credential_id", credentialID)
		return
	}

	response := CredentialResponse{
		CredentialID:    uint64(credential.ID),
		StudentName:     credential.StudentName,
		CourseName:      credential.CourseName,
		InstitutionName: credential.InstitutionName,
		CredentialHash:  credential.CredentialHash,
		Issuer:          credential.Issuer.String(),
		IssueDate:       credential.IssueDate.UTC(),
		IsValid:         credential.IsValid,
	}
	if !credential.RevokedAt.IsZero() {
		revokedAt := credential.RevokedAt.UTC()
		response.RevokedAt = &revokedAt
	}

	httputil.WriteJSON(w, http.StatusOK, response)
}

// HandleVerifyCredential handles GET /credentials/{id}/verify.
func (h *Handler) HandleVerifyCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credentialID, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	result, err := h.service.VerifyCredential(ctx, credentialID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to verify credential", "credential_id", credentialID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{
		IsValid:         result.IsValid,
		StudentName:     result.StudentName,
		CourseName:      result.CourseName,
		InstitutionName: result.InstitutionName,
		IssueDate:       result.IssueDate.UTC(),
	})
}

// HandleRevokeCredential handles POST /credentials/{id}/revoke.
func (h *Handler) HandleRevokeCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	credentialID, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	if err := h.service.RevokeCredential(ctx, credentialID); err != nil {
		h.writeServiceError(ctx, w, err, "failed to revoke credential",
			"caller", caller,
			"credential_id", credentialID,
		)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RevokeResponse{CredentialID: uint64(credentialID), IsValid: false})
}

// HandleAuthorizeInstitution handles POST /institutions.
func (h *Handler) HandleAuthorizeInstitution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[AuthorizeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	identity := req.ParsedIdentity()
	if err := h.service.AuthorizeInstitution(ctx, identity); err != nil {
		h.writeServiceError(ctx, w, err, "failed to authorize institution",
			"caller", caller,
			"identity", identity,
		)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, InstitutionResponse{Identity: identity.String(), Authorized: true})
}

// HandleRevokeInstitution handles DELETE /institutions/{identity}.
func (h *Handler) HandleRevokeInstitution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	identity, ok := h.identityParam(w, r)
	if !ok {
		return
	}

	if err := h.service.RevokeInstitutionAccess(ctx, identity); err != nil {
		h.writeServiceError(ctx, w, err, "failed to revoke institution access",
			"caller", caller,
			"identity", identity,
		)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, InstitutionResponse{Identity: identity.String(), Authorized: false})
}

// HandleGetInstitution handles GET /institutions/{identity}.
func (h *Handler) HandleGetInstitution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := h.identityParam(w, r)
	if !ok {
		return
	}

	authorized, err := h.service.IsAuthorized(ctx, identity)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to read institution", "identity", identity)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, InstitutionResponse{Identity: identity.String(), Authorized: authorized})
}

// HandleGetRegistry handles GET /registry.
func (h *Handler) HandleGetRegistry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reg, err := h.service.State(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to read registry")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RegistryResponse{
		Owner:           reg.Owner.String(),
		CredentialCount: reg.CredentialCount,
	})
}

func (h *Handler) requireCaller(w http.ResponseWriter, ctx context.Context) (id.Identity, bool) {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}

func (h *Handler) credentialID(w http.ResponseWriter, r *http.Request) (id.CredentialID, bool) {
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return credentialID, true
}

// identityParam reads the {identity} segment exactly once decoded. chi routes on
// RawPath when the request carries escapes that Path cannot represent (such as
// %2F), and only then is the captured segment still encoded.
func (h *Handler) identityParam(w http.ResponseWriter, r *http.Request) (id.Identity, bool) {
	raw := chi.URLParam(r, "identity")
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identity encoding"))
			return "", false
		}
		raw = decoded
	}
	identity, err := id.ParseIdentity(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return identity, true
}

// writeServiceError logs and writes a service failure. Rejections are expected
// outcomes and log at warn; anything that maps to a 5xx logs at error.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, msg string, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	if httputil.DomainCodeToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

var _ Service = (*registryservice.Service)(nil)
