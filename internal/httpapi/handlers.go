package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/owner"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/utils"
)

const maxBodyBytes = 1 << 20

// DataResponse wraps every successful payload.
type DataResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload model.SaveContactPayload
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	requestID, _ := owner.FromRequestIDContext(r.Context())
	contact, err := s.service.SaveContact(r.Context(), payload, &model.LastEvent{
		Source:     model.EventSourceHTTP,
		RequestID:  requestID,
		ReceivedAt: utils.Now(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, DataResponse{Data: contact})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload model.UpdateContactPayload
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	contact, err := s.service.UpdateContact(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, DataResponse{Data: contact})
}

func (s *Server) handleFollowups(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.service.DueFollowups(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, DataResponse{Data: contacts})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", apperrors.ErrBadRequest, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", apperrors.ErrBadRequest, err)
	}
	return nil
}

// statusFor maps the error taxonomy onto HTTP. Only the 500 branch hides
// the cause from the caller.
func statusFor(err error) (int, ErrorResponse) {
	switch {
	case apperrors.IsUnauthenticatedError(err):
		return http.StatusUnauthorized, ErrorResponse{Error: "not_logged_in"}
	case apperrors.IsValidationError(err), apperrors.IsBadRequestError(err):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()}
	case apperrors.IsAlreadyClaimedError(err):
		return http.StatusConflict, ErrorResponse{Error: "already_claimed", Message: "This profile is already tracked by another user"}
	case apperrors.IsNotFoundError(err):
		return http.StatusNotFound, ErrorResponse{Error: "not_found"}
	case apperrors.IsRateLimitedError(err):
		return http.StatusTooManyRequests, ErrorResponse{Error: "rate_limited"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal", Message: "Internal server error"}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("Request failed", zap.Error(err))
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		status = http.StatusRequestEntityTooLarge
		body = ErrorResponse{Error: "payload_too_large"}
	}
	utils.WriteJSONResponse(w, status, body)
}
