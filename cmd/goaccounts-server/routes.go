package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/middleware"
)

const requestTimeout = 30 * time.Second

// newRouter mounts the account API. metrics may be nil.
func newRouter(engine *goAccounts.Engine, logger *slog.Logger, metrics http.Handler) http.Handler {
	h := &handler{engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/signup", h.signup)
		r.Post("/login", h.login)
		r.Post("/confirm-email", h.confirmEmail)
		r.Post("/confirm-email/resend", h.resendEmailConfirmation)
		r.Post("/invites/accept", h.signupByInvite)

		r.Post("/password-reset", h.passwordReset)
		r.Post("/password-reset/request", h.triggerPasswordReset)
		r.Get("/password-reset/check", h.checkResetToken)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(engine))
			r.Get("/me", h.currentUser)
			r.Patch("/me", h.updateCurrentUser)
			r.Post("/me/password", h.changePassword)
			r.Post("/invites", h.inviteUser)
		})
	})
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.LogAttrs(r.Context(), slog.LevelInfo, "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
