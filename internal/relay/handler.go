package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// maxMessageBytes caps a relay message body.
const maxMessageBytes = 8 << 20

// Envelope is the relay's reply to a message.
type Envelope struct {
	Success bool      `json:"success"`
	Data    *Response `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// Secret enables the bearer-token guard when non-empty.
	Secret         string
	AllowedOrigins []string
	// Upstreams maps each message type to the API base its URLs must sit
	// under. Types missing from a non-nil map are rejected; nil means
	// DefaultUpstreams.
	Upstreams map[string]string
}

// NewRouter returns a chi router serving GET /health and POST /relay.
// Callers may mount further routes on it; use Guard to protect them.
func NewRouter(rl Relay, opts RouterOptions) chi.Router {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(Guard(opts.Secret))
		upstreams := opts.Upstreams
		if upstreams == nil {
			upstreams = DefaultUpstreams()
		}
		pr.Post("/relay", messageHandler(rl, upstreams))
	})

	return r
}

func messageHandler(rl Relay, upstreams map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
			WriteJSON(w, http.StatusBadRequest, Envelope{Error: "invalid message body"})
			return
		}

		if !KnownType(req.Type) {
			WriteJSON(w, http.StatusOK, Envelope{Error: "Unknown message type"})
			return
		}

		if !AllowedURL(upstreams[req.Type], req.URL) {
			zap.L().Warn("relay: url outside provider base",
				zap.String("type", req.Type),
				zap.String("url", req.URL),
			)
			WriteJSON(w, http.StatusForbidden, Envelope{Error: "URL not allowed for message type"})
			return
		}

		resp, err := rl.Do(r.Context(), req)
		if err != nil {
			zap.L().Warn("relay: upstream call failed",
				zap.String("type", req.Type),
				zap.Error(err),
			)
			WriteJSON(w, http.StatusOK, Envelope{Error: err.Error()})
			return
		}

		WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: resp})
	}
}

// Guard rejects requests without a valid HS256 bearer token. An empty
// secret disables the check.
func Guard(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				WriteJSON(w, http.StatusUnauthorized, Envelope{Error: "Authorization header format must be Bearer {token}"})
				return
			}
			if _, err := VerifyToken(secret, parts[1]); err != nil {
				msg := "Invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "Token expired"
				}
				WriteJSON(w, http.StatusUnauthorized, Envelope{Error: msg})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("relay: write response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
