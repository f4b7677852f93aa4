package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scopeguard/pricing-cli/internal/completion"
	"github.com/scopeguard/pricing-cli/internal/model"
	"github.com/scopeguard/pricing-cli/internal/pricing"
	"github.com/scopeguard/pricing-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pricing HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		engine, router, err := buildEngine()
		if err != nil {
			return err
		}

		dispatcher := pricing.NewDispatcher(st, engine)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newAPIHandler(engine, dispatcher, st, router),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		// Let in-flight analyses write their terminal state before exiting.
		dispatcher.Wait()
		logRunUsage(router)

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// analyzeBody is the POST /api/analyze payload. Without clarification
// answers the call is an intake pass; with answers it dispatches the full
// pipeline.
type analyzeBody struct {
	ProjectID   string `json:"project_id"`
	ClientName  string `json:"client_name,omitempty"`
	ClientEmail string `json:"client_email,omitempty"`
	RequestText string `json:"request_text"`
	Urgency     string `json:"urgency,omitempty"`

	Freelancer   model.FreelancerProfile `json:"freelancer"`
	Rules        model.ProjectRules      `json:"rules"`
	ContextNotes []string                `json:"context_notes,omitempty"`

	ClarificationAnswers map[string]string `json:"clarification_answers,omitempty"`
}

func newAPIHandler(engine *pricing.Engine, dispatcher *pricing.Dispatcher, st store.Store, router *completion.Router) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"status": "ok"}
		if router != nil {
			breakers := map[string]string{}
			for backend, state := range router.BreakerStates() {
				breakers[backend] = state.String()
			}
			body["breakers"] = breakers
		}
		writeJSON(w, http.StatusOK, body)
	})

	r.Post("/api/analyze", func(w http.ResponseWriter, req *http.Request) {
		var body analyzeBody
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.RequestText == "" {
			writeError(w, http.StatusBadRequest, "request_text is required")
			return
		}

		input := pricing.AnalyzeInput{
			Freelancer:           body.Freelancer,
			Rules:                body.Rules,
			ContextNotes:         body.ContextNotes,
			RequestText:          body.RequestText,
			ClarificationAnswers: body.ClarificationAnswers,
			Urgency:              body.Urgency,
		}

		// First call: generate questions, persist nothing.
		if len(body.ClarificationAnswers) == 0 {
			questions := engine.Clarify(req.Context(), input)
			writeJSON(w, http.StatusOK, map[string]any{
				"status":    "awaiting_answers",
				"questions": questions,
			})
			return
		}

		if body.ProjectID == "" {
			writeError(w, http.StatusBadRequest, "project_id is required")
			return
		}

		rec, err := dispatcher.Submit(req.Context(), pricing.SubmitInput{
			AnalyzeInput: input,
			ProjectID:    body.ProjectID,
			ClientName:   body.ClientName,
			ClientEmail:  body.ClientEmail,
		})
		if err != nil {
			zap.L().Error("submit failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to store request")
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":     "analyzing",
			"request_id": rec.ID,
		})
	})

	r.Get("/api/requests/{id}", func(w http.ResponseWriter, req *http.Request) {
		rec, err := st.GetRequest(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if strings.Contains(err.Error(), "not found") {
				writeError(w, http.StatusNotFound, "request not found")
				return
			}
			zap.L().Error("get request failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load request")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	r.Get("/api/requests", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RequestFilter{
			ProjectID: req.URL.Query().Get("project"),
			Status:    model.RequestStatus(req.URL.Query().Get("status")),
			Limit:     50,
		}
		if raw := req.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 1 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			filter.Limit = limit
		}

		requests, err := st.ListRequests(req.Context(), filter)
		if err != nil {
			zap.L().Error("list requests failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list requests")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
