package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsearch/internal/app"
	"github.com/custodia-labs/docsearch/internal/model"
	"github.com/custodia-labs/docsearch/internal/search"
	"github.com/custodia-labs/docsearch/internal/telemetry"
)

// maxUploadBytes bounds one uploaded file. Large corpora go through the
// batch `docsearch ingest` command instead of the HTTP surface.
const maxUploadBytes = 64 << 20

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search, suggest, and ingest APIs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, res := range a.Preflight(ctx) {
				if res.IsCritical() {
					return fmt.Errorf("preflight check %s failed: %s", res.Name, res.Message)
				}
			}

			if port == 0 {
				port = a.Config.Server.Port
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           newAPIHandler(a),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("serving", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-stop:
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("shutdown did not drain cleanly", "error", err)
			}
			return a.SaveVectorIndexes()
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (0 uses server.port from config)")
	return cmd
}

// newAPIHandler routes the engine's exposed surfaces (search, suggest,
// ingest, artifact update/delete). Transport concerns beyond routing —
// auth, sessions, rate limits — belong to the fronting proxy, not here.
func newAPIHandler(a *app.App) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /v1/tenants/{tenant}/search", func(w http.ResponseWriter, r *http.Request) {
		tenant := r.PathValue("tenant")
		q := r.URL.Query().Get("q")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		start := time.Now()
		resp := a.Search.Search(r.Context(), search.Request{
			Query:    q,
			TenantID: tenant,
			Limit:    limit,
			Mode:     search.Mode(r.URL.Query().Get("mode")),
		})
		if a.Metrics != nil {
			a.Metrics.Record(telemetry.QueryEvent{
				Query:       q,
				TenantID:    tenant,
				QueryType:   queryTypeFor(resp.Mode),
				ResultCount: len(resp.Results),
				Latency:     time.Since(start),
				Timestamp:   start,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET /v1/tenants/{tenant}/suggest", func(w http.ResponseWriter, r *http.Request) {
		tenant := r.PathValue("tenant")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 10
		}
		suggestions, err := a.Suggest.Suggest(r.Context(), tenant, r.URL.Query().Get("prefix"), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
	})

	mux.HandleFunc("POST /v1/tenants/{tenant}/files", func(w http.ResponseWriter, r *http.Request) {
		tenant := r.PathValue("tenant")
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
			return
		}

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		artifact, err := a.Ingest.IngestFile(r.Context(), data, header.Filename, mimeType,
			tenant, r.FormValue("owner"), r.Form["tag"], nil)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if err := a.Blob.Put(r.Context(), tenant, artifact.ID, header.Filename, data); err != nil {
			logger.Warn("blob store put failed, artifact kept without raw bytes", "artifact", artifact.ID, "error", err)
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": artifact.ID})
	})

	mux.HandleFunc("POST /v1/tenants/{tenant}/snippets", func(w http.ResponseWriter, r *http.Request) {
		tenant := r.PathValue("tenant")
		var req struct {
			Text   string   `json:"text"`
			Title  string   `json:"title"`
			Owner  string   `json:"owner"`
			Source string   `json:"source"`
			Tags   []string `json:"tags"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.Text == "" {
			writeError(w, http.StatusBadRequest, errors.New("text is required"))
			return
		}
		if req.Source == "" {
			req.Source = "api"
		}
		artifact, err := a.Ingest.IngestSnippet(r.Context(), req.Text, req.Title, tenant, req.Owner, req.Source, req.Tags, nil)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": artifact.ID})
	})

	mux.HandleFunc("GET /v1/tenants/{tenant}/artifacts/{id}", func(w http.ResponseWriter, r *http.Request) {
		artifact, err := a.Store.GetArtifact(r.Context(), r.PathValue("tenant"), r.PathValue("id"))
		if err != nil || artifact == nil {
			writeError(w, http.StatusNotFound, errors.New("artifact not found"))
			return
		}
		writeJSON(w, http.StatusOK, artifact)
	})

	mux.HandleFunc("PATCH /v1/tenants/{tenant}/artifacts/{id}", func(w http.ResponseWriter, r *http.Request) {
		tenant, id := r.PathValue("tenant"), r.PathValue("id")
		artifact, err := a.Store.GetArtifact(r.Context(), tenant, id)
		if err != nil || artifact == nil {
			writeError(w, http.StatusNotFound, errors.New("artifact not found"))
			return
		}

		var req struct {
			FileName    *string  `json:"file_name"`
			Description *string  `json:"description"`
			Summary     *string  `json:"summary"`
			Vendor      *string  `json:"vendor"`
			Tags        []string `json:"tags"`
			Keywords    []string `json:"keywords"`
			Entities    []string `json:"entities"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		var changed []string
		if req.FileName != nil {
			artifact.FileName = *req.FileName
			changed = append(changed, "file_name")
		}
		if req.Description != nil {
			artifact.Description = *req.Description
			changed = append(changed, "content")
		}
		if req.Summary != nil {
			artifact.Summary = *req.Summary
			changed = append(changed, "summary")
		}
		if req.Vendor != nil {
			artifact.Vendor = *req.Vendor
			changed = append(changed, "vendor")
		}
		if req.Tags != nil {
			artifact.Tags = req.Tags
			changed = append(changed, "tags")
		}
		if req.Keywords != nil {
			artifact.Keywords = req.Keywords
			changed = append(changed, "keywords")
		}
		if req.Entities != nil {
			artifact.Entities = req.Entities
			changed = append(changed, "entities")
		}
		if len(changed) == 0 {
			writeJSON(w, http.StatusOK, artifact)
			return
		}

		artifact.UpdatedAt = time.Now().UTC()
		if err := a.Store.SaveArtifact(r.Context(), artifact); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		a.Reindex.Submit(model.Event{
			Kind:          model.EventUpdated,
			ArtifactID:    id,
			TenantID:      tenant,
			ChangedFields: changed,
			EmittedAt:     time.Now().UTC(),
		})
		writeJSON(w, http.StatusOK, artifact)
	})

	mux.HandleFunc("DELETE /v1/tenants/{tenant}/artifacts/{id}", func(w http.ResponseWriter, r *http.Request) {
		tenant, id := r.PathValue("tenant"), r.PathValue("id")
		if _, err := a.Store.GetArtifact(r.Context(), tenant, id); err != nil {
			writeError(w, http.StatusNotFound, errors.New("artifact not found"))
			return
		}
		if err := a.Blob.Delete(r.Context(), tenant, id); err != nil {
			logger.Warn("blob store delete failed", "artifact", id, "error", err)
		}
		a.Reindex.Submit(model.Event{
			Kind:       model.EventDeleted,
			ArtifactID: id,
			TenantID:   tenant,
			EmittedAt:  time.Now().UTC(),
		})
		w.WriteHeader(http.StatusAccepted)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
