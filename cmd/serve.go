package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/msi-cli/internal/config"
	"github.com/sells-group/msi-cli/internal/model"
	"github.com/sells-group/msi-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve analysis results over a read-only HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st, cfg.Server),
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

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the read-only results API.
func newRouter(st store.Store, serverCfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: serverCfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(rateLimit(rate.NewLimiter(rate.Limit(serverCfg.RateLimit), serverCfg.RateBurst)))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			runs, err := st.ListRuns(req.Context(), store.RunFilter{
				Status: model.RunStatus(req.URL.Query().Get("status")),
			})
			if err != nil {
				writeError(w, err)
				return
			}
			if runs == nil {
				runs = []model.Run{}
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Route("/runs/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, req *http.Request) {
				run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, run)
			})
			r.Get("/aggregates", resultHandler(func(req *http.Request) (any, error) {
				return st.GetAggregates(req.Context(), chi.URLParam(req, "id"))
			}))
			r.Get("/scores", resultHandler(func(req *http.Request) (any, error) {
				return st.GetScores(req.Context(), chi.URLParam(req, "id"))
			}))
			r.Get("/waves", resultHandler(func(req *http.Request) (any, error) {
				return st.GetWaves(req.Context(), chi.URLParam(req, "id"))
			}))
			r.Get("/hotspots", resultHandler(func(req *http.Request) (any, error) {
				return st.GetHotspots(req.Context(), chi.URLParam(req, "id"))
			}))
		})
	})

	return r
}

// requestLogger logs each request with its latency and status.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}

// rateLimit applies a shared token-bucket limiter to every request.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resultHandler wraps a result-table lookup into a JSON handler.
func resultHandler(fetch func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		v, err := fetch(req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	zap.L().Error("api request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
