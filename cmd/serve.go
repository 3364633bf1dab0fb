package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/outreach"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var (
	servePort    int
	serveContext string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the follow-up scheduler in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		denv, err := initDiscovery(ctx)
		if err != nil {
			return err
		}
		defer denv.Close()

		oenv, err := initOutreach(ctx, serveContext)
		if err != nil {
			return err
		}
		defer oenv.Close()

		go oenv.Scheduler.Start(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(denv.Pipeline, oenv.Store, oenv.Scheduler),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

// newRouter builds the HTTP API around an initialized pipeline, store, and
// scheduler.
func newRouter(p *pipeline.Pipeline, st store.Store, sched *outreach.Scheduler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/discover", func(w http.ResponseWriter, req *http.Request) {
		var body pipeline.DiscoverRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.Query == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
			return
		}

		report, err := p.Discover(req.Context(), body)
		if err != nil {
			zap.L().Error("discovery failed", zap.String("query", body.Query), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "discovery failed"})
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	r.Post("/leads/{id}/reply", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if err := st.MarkReplied(req.Context(), id); err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
				return
			}
			zap.L().Error("mark replied failed", zap.String("lead_id", id), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "update failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "replied"})
	})

	r.Post("/sweep", func(w http.ResponseWriter, req *http.Request) {
		sent, err := sched.RunSweep(req.Context())
		if err != nil {
			zap.L().Error("manual sweep failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "sweep failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveContext, "context", "", "sender context for follow-up drafting")
	rootCmd.AddCommand(serveCmd)
}
