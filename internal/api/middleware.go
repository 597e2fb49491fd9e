package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pharmapos/m/internal/audit"
	"pharmapos/m/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags each request with an id, attaches a request-scoped
// logger to its context and logs the outcome.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		reqLog := h.log.With(zap.String("request_id", reqID))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), reqLog)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		}
		if status >= http.StatusInternalServerError {
			reqLog.Error("request", fields...)
		} else {
			reqLog.Info("request", fields...)
		}
	})
}

// clientInfo makes the caller's address and user agent available to the
// activity log.
func clientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(audit.WithClient(r.Context(), ip, r.UserAgent())))
	})
}

// shopLimiter throttles checkouts per shop with a token bucket each.
type shopLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[int64]*rate.Limiter
}

func newShopLimiter(perSecond float64, burst int) *shopLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &shopLimiter{limit: limit, burst: burst, limiters: make(map[int64]*rate.Limiter)}
}

func (l *shopLimiter) allow(shopID int64) bool {
	l.mu.Lock()
	lim, ok := l.limiters[shopID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[shopID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
