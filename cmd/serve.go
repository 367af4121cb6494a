package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/qhd-cli/internal/model"
	"github.com/sells-group/qhd-cli/internal/resilience"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for document and publish requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(ctx, env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter wires the HTTP routes. Background publish jobs run on ctx so
// they stop with the server.
func newRouter(ctx context.Context, env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		publisher := "available"
		if env.Publisher != nil && !env.Publisher.Available() {
			publisher = "breaker_open"
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "publisher": publisher})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/documents/{process}/{partID}", func(w http.ResponseWriter, req *http.Request) {
		dt, ok := model.ParseDocType(queryOr(req, "type", "process"))
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown document type")
			return
		}
		runner, err := env.Runner(req.Context(), chi.URLParam(req, "process"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		doc, err := runner.Document(req.Context(), dt, chi.URLParam(req, "partID"))
		if err != nil {
			writeError(w, statusOf(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, doc)
	})

	r.Post("/publish/{process}", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			PartIDs       []string `json:"part_ids"`
			Types         []string `json:"types"`
			SkipPublished bool     `json:"skip_published"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(body.Types) == 0 {
			body.Types = []string{string(model.DocTypeProcess)}
		}
		types, err := parseDocTypes(body.Types)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		process := chi.URLParam(req, "process")
		if _, err := env.Runner(req.Context(), process); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		// Run publish asynchronously
		env.Go(func() {
			if err := runPublish(ctx, env, process, body.PartIDs, types, 0, body.SkipPublished); err != nil {
				zap.L().Error("publish request failed", zap.String("process", process), zap.Error(err))
			}
		})

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":  "accepted",
			"process": process,
			"parts":   len(body.PartIDs),
		})
	})

	r.Get("/failures", func(w http.ResponseWriter, req *http.Request) {
		filter := resilience.FailureFilter{
			PartID:    req.URL.Query().Get("part"),
			Process:   req.URL.Query().Get("process"),
			ErrorType: req.URL.Query().Get("kind"),
		}
		if n, err := strconv.Atoi(req.URL.Query().Get("limit")); err == nil {
			filter.Limit = n
		}
		entries, err := env.Store.ListFailures(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})

	return r
}

func queryOr(req *http.Request, key, def string) string {
	if v := req.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}

// statusOf maps pipeline errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrDataUnavailable):
		return http.StatusNotFound
	case errors.Is(err, model.ErrEmptySegment), errors.Is(err, model.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
