package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/auth"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/observer"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/owner"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

type responseWriterWithStatus struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *responseWriterWithStatus) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseWriterWithStatus) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// requestIDMiddleware reuses a caller-supplied id or mints one, and binds a
// request-scoped logger.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := owner.WithRequestID(r.Context(), requestID)
		ctx = logger.WithLogger(ctx, s.logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriterWithStatus{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if rec := recover(); rec != nil {
				logger.FromContext(r.Context()).Error("[panic] Recovered from panic in HTTP handler",
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				if rw.wroteHeader {
					// Headers are already on the wire; only the recorded status changes.
					rw.status = http.StatusInternalServerError
				} else {
					writeError(rw, r, apperrors.Internal(apperrors.ErrInternal, "panic"))
				}
			}

			duration := time.Since(start)
			route := routeTemplate(r)
			observer.RecordHTTPRequest(route, r.Method, rw.status, duration)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", rw.status),
				zap.Duration("duration", duration),
			}
			log := logger.FromContext(r.Context())
			switch {
			case rw.status >= http.StatusInternalServerError:
				log.Error("HTTP request", fields...)
			case rw.status >= http.StatusBadRequest:
				log.Warn("HTTP request", fields...)
			default:
				log.Info("HTTP request", fields...)
			}
		}()

		next.ServeHTTP(rw, r)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(ClientIP(r)) {
			observer.IncHTTPRateLimited(routeTemplate(r))
			w.Header().Set("Retry-After", "1")
			writeError(w, r, apperrors.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware resolves the session token to an owner id. Handlers behind
// it can rely on owner.FromContext.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r, s.cookieName)
		ownerID, err := s.verifier.Verify(token)
		if err != nil {
			logger.FromContext(r.Context()).Debug("Session rejected", zap.Error(err))
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(owner.WithOwnerID(r.Context(), ownerID)))
	})
}
