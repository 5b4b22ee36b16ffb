package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quizlens/internal/extract"
	"github.com/sells-group/quizlens/internal/gateway"
	"github.com/sells-group/quizlens/internal/model"
	"github.com/sells-group/quizlens/internal/registry"
	"github.com/sells-group/quizlens/internal/relay"
	"github.com/sells-group/quizlens/internal/session"
)

// maxAPIBodyBytes caps an analysis or chat request body.
const maxAPIBodyBytes = 4 << 20

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay and analysis API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		rl := relay.NewHTTPRelay(
			time.Duration(cfg.Relay.DialTimeoutSecs)*time.Second,
			time.Duration(cfg.Relay.TLSTimeoutSecs)*time.Second,
		)
		router := buildRouter(env, rl, relay.RouterOptions{
			Secret:         cfg.Relay.Secret,
			AllowedOrigins: cfg.Relay.AllowedOrigins,
			Upstreams:      configuredUpstreams(),
		})

		srv := &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.String("addr", srv.Addr),
			zap.Bool("auth", cfg.Relay.Secret != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// configuredUpstreams limits relay messages of each type to the
// configured provider base URL.
func configuredUpstreams() map[string]string {
	upstreams := relay.DefaultUpstreams()
	for typ, base := range map[string]string{
		relay.TypeOpenAI:   cfg.Providers.OpenAI.BaseURL,
		relay.TypeClaude:   cfg.Providers.Claude.BaseURL,
		relay.TypeGrok:     cfg.Providers.Grok.BaseURL,
		relay.TypeDeepSeek: cfg.Providers.DeepSeek.BaseURL,
	} {
		if base != "" {
			upstreams[typ] = base
		}
	}
	return upstreams
}

// buildRouter mounts the analysis API beside the relay routes, behind the
// same bearer guard.
func buildRouter(env *appEnv, rl relay.Relay, opts relay.RouterOptions) chi.Router {
	r := relay.NewRouter(rl, opts)
	r.Group(func(api chi.Router) {
		api.Use(relay.Guard(opts.Secret))
		api.Post("/api/analyze", analyzeHandler(env))
		api.Post("/api/chat", chatHandler(env))
		api.Route("/api/session", func(sr chi.Router) {
			sr.Post("/toggle", sessionHandler(env, toggleQuestion))
			sr.Post("/toggle-all", sessionHandler(env, toggleAllQuestions))
			sr.Post("/clear", sessionHandler(env, clearQuestions))
		})
	})
	return r
}

type analyzeRequestBody struct {
	HTML       string `json:"html"`
	Model      string `json:"model,omitempty"`
	QuestionID string `json:"question_id,omitempty"`
	// Session scopes saved display preferences; empty uses none.
	Session string `json:"session,omitempty"`
}

type analyzeResponseBody struct {
	Questions []model.QuestionRecord  `json:"questions"`
	Analyses  []*model.AnalysisRecord `json:"analyses"`
	Errors    map[string]string       `json:"errors,omitempty"`
	HTML      string                  `json:"html"`
}

func analyzeHandler(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequestBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBodyBytes)).Decode(&req); err != nil {
			relay.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.HTML == "" {
			relay.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "html is required"})
			return
		}

		page, err := extract.ParseHTML(req.HTML)
		if err != nil {
			relay.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}

		var prefs session.PreferenceStore
		if req.Session != "" {
			if prefs, err = env.initPreferences(r.Context(), req.Session); err != nil {
				writeAPIError(w, err)
				return
			}
		}

		reports, err := runAnalysis(r.Context(), env, page, analysisRequest{
			QuestionID:  req.QuestionID,
			Model:       req.Model,
			Concurrency: cfg.Gateway.Concurrency,
			Preferences: prefs,
		})
		if err != nil {
			writeAPIError(w, err)
			return
		}

		html, err := page.HTML()
		if err != nil {
			writeAPIError(w, err)
			return
		}

		resp := analyzeResponseBody{
			Questions: make([]model.QuestionRecord, 0, len(reports)),
			Analyses:  make([]*model.AnalysisRecord, 0, len(reports)),
			HTML:      html,
		}
		for _, rep := range reports {
			resp.Questions = append(resp.Questions, rep.Question)
			resp.Analyses = append(resp.Analyses, rep.Analysis)
			if rep.Error != "" {
				if resp.Errors == nil {
					resp.Errors = map[string]string{}
				}
				resp.Errors[rep.Question.ID] = rep.Error
			}
		}
		relay.WriteJSON(w, http.StatusOK, resp)
	}
}

func chatHandler(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
			Model   string `json:"model,omitempty"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBodyBytes)).Decode(&req); err != nil {
			relay.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		reply, err := sendChat(r.Context(), env, req.Message, req.Model)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		relay.WriteJSON(w, http.StatusOK, map[string]string{"reply": reply})
	}
}

type sessionRequestBody struct {
	HTML       string `json:"html"`
	Session    string `json:"session"`
	QuestionID string `json:"question_id,omitempty"`
}

type sessionResponseBody struct {
	Visible *bool  `json:"visible,omitempty"`
	HTML    string `json:"html"`
}

// sessionOp applies one visibility change and returns the new visibility,
// or nil when the operation has none.
type sessionOp func(ctx context.Context, ctrl *session.Controller, req sessionRequestBody) (*bool, error)

func toggleQuestion(ctx context.Context, ctrl *session.Controller, req sessionRequestBody) (*bool, error) {
	if req.QuestionID == "" {
		return nil, errMissingQuestionID
	}
	visible, err := ctrl.Toggle(ctx, req.QuestionID)
	return &visible, err
}

func toggleAllQuestions(ctx context.Context, ctrl *session.Controller, _ sessionRequestBody) (*bool, error) {
	visible, err := ctrl.ToggleAll(ctx)
	return &visible, err
}

func clearQuestions(ctx context.Context, ctrl *session.Controller, _ sessionRequestBody) (*bool, error) {
	return nil, ctrl.Clear(ctx)
}

var errMissingQuestionID = eris.New("question_id is required")

func sessionHandler(env *appEnv, op sessionOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequestBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBodyBytes)).Decode(&req); err != nil {
			relay.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.HTML == "" || req.Session == "" {
			relay.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "html and session are required"})
			return
		}

		page, err := extract.ParseHTML(req.HTML)
		if err != nil {
			relay.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		prefs, err := env.initPreferences(r.Context(), req.Session)
		if err != nil {
			writeAPIError(w, err)
			return
		}

		visible, err := op(r.Context(), env.newController(page, "", prefs), req)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		html, err := page.HTML()
		if err != nil {
			writeAPIError(w, err)
			return
		}
		relay.WriteJSON(w, http.StatusOK, sessionResponseBody{Visible: visible, HTML: html})
	}
}

// writeAPIError maps typed errors onto HTTP statuses.
func writeAPIError(w http.ResponseWriter, err error) {
	var (
		cfgErr      *registry.ConfigurationError
		extractErr  *extract.ExtractionError
		providerErr *gateway.ProviderError
	)
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.As(err, &cfgErr):
		status, msg = http.StatusBadRequest, cfgErr.Message
	case errors.As(err, &extractErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &providerErr):
		status, msg = http.StatusBadGateway, providerErr.Message
	case errors.Is(err, errEmptyMessage), errors.Is(err, errMissingQuestionID):
		status = http.StatusBadRequest
	default:
		zap.L().Error("api request failed", zap.Error(err))
	}
	relay.WriteJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind address (default from config, 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
