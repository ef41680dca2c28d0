package core

import (
	"net"
	"net/http"
	"strings"
	"time"

	"recordstack/internal/types"
)

// serviceName tags system log rows written by the API process.
const serviceName = "api"

// SystemLogMiddleware records every request as a SystemLog row. Logging is
// strictly best-effort: a storage failure is reported to the structured
// logger and the response proceeds untouched.
func (s *Server) SystemLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.SystemLogs == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rc, r)

		elapsed := int(time.Since(start).Milliseconds())
		entry := &types.SystemLog{
			ServiceName:    serviceName,
			Level:          levelForStatus(rc.statusCode),
			Message:        r.Method + " " + r.URL.Path,
			RequestPath:    r.URL.Path,
			HTTPStatus:     rc.statusCode,
			ResponseTimeMS: &elapsed,
			UserIPAddress:  clientIP(r),
		}
		if actor, ok := types.GetActor(r.Context()); ok {
			entry.CreatedBy = actor.ID
		}
		if err := s.SystemLogs.Create(r.Context(), entry); err != nil {
			s.Logger.Error("system log write failed", "error", err, "path", r.URL.Path)
		}
	})
}

func levelForStatus(status int) types.LogLevel {
	switch {
	case status >= 500:
		return types.LogError
	case status >= 400:
		return types.LogWarning
	default:
		return types.LogInfo
	}
}

// clientIP prefers the first X-Forwarded-For hop, then the bare RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
