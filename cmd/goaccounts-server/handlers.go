package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	goAccounts "github.com/MrEthical07/goAccounts"
)

const maxBodyBytes = 1 << 16

type handler struct {
	engine *goAccounts.Engine
	logger *slog.Logger
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type confirmEmailRequest struct {
	Email             string `json:"email"`
	EmailConfirmToken string `json:"emailConfirmToken"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type passwordResetRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	ResetToken string `json:"resetToken"`
}

type inviteAcceptRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	InviteToken string `json:"inviteToken"`
}

type profileRequest struct {
	Name *string `json:"name"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var errBadRequestBody = errors.New("invalid request body")

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.Signup(r.Context(), goAccounts.SignupInput{Name: req.Name, Email: req.Email, Password: req.Password})
	h.respond(w, r, http.StatusCreated, res, err)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.Login(r.Context(), req.Email, req.Password)
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *handler) confirmEmail(w http.ResponseWriter, r *http.Request) {
	var req confirmEmailRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.ConfirmEmail(r.Context(), req.Email, req.EmailConfirmToken)
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *handler) resendEmailConfirmation(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.ResendEmailConfirmation(r.Context(), req.Email)
	h.respond(w, r, http.StatusAccepted, res, err)
}

func (h *handler) triggerPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.TriggerPasswordReset(r.Context(), req.Email)
	h.respond(w, r, http.StatusAccepted, res, err)
}

func (h *handler) checkResetToken(w http.ResponseWriter, r *http.Request) {
	err := h.engine.CheckResetToken(r.Context(), r.URL.Query().Get("token"))
	h.respond(w, r, http.StatusOK, &goAccounts.OK{OK: true}, err)
}

func (h *handler) passwordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.PasswordReset(r.Context(), req.Email, req.Password, req.ResetToken)
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *handler) signupByInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteAcceptRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.SignupByInvite(r.Context(),
		goAccounts.SignupInput{Name: req.Name, Email: req.Email, Password: req.Password},
		req.InviteToken)
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *handler) currentUser(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.CurrentUser(r.Context())
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *handler) updateCurrentUser(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.UpdateCurrentUser(r.Context(), goAccounts.ProfileUpdate{Name: req.Name})
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.ChangePassword(r.Context(), req.OldPassword, req.NewPassword)
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *handler) inviteUser(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.InviteUser(r.Context(), goAccounts.InviteInput{Email: req.Email})
	h.respond(w, r, http.StatusCreated, res, err)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errBadRequestBody.Error()})
		return false
	}
	return true
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request, status int, body any, err error) {
	if err != nil {
		code, public := statusFor(err)
		if code == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		}
		writeJSON(w, code, errorResponse{Error: public})
		return
	}
	writeJSON(w, status, body)
}

// statusFor maps engine errors to a status and the message safe to show clients.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, goAccounts.ErrWeakPassword),
		errors.Is(err, goAccounts.ErrInvalidEmail),
		errors.Is(err, goAccounts.ErrInvalidOldPassword),
		errors.Is(err, goAccounts.ErrInvalidInviteToken),
		errors.Is(err, goAccounts.ErrInvalidEmailConfirmToken):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, goAccounts.ErrUnauthenticated),
		errors.Is(err, goAccounts.ErrNoUserFound):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, goAccounts.ErrEmailNotConfirmed):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, goAccounts.ErrUserExists):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
