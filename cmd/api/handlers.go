package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/app"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/ingest"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/docclient"
)

// maxUpload bounds the multipart body.
const maxUpload = 100 << 20

type server struct {
	app *app.App
	log *slog.Logger
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, docclient.ErrorResponse{Detail: detail})
}

func (s *server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, docclient.MessageResponse{Message: "PDF Processing Service is running"})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if _, err := s.app.Registry.List(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, docclient.HealthResponse{Status: "unhealthy", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, docclient.HealthResponse{
		Status: "healthy",
		Services: map[string]string{
			"vector_store": s.app.Config.VectorBackend,
			"registry":     s.app.Config.RegistryBackend,
			"synthesis":    s.app.Synth.Mode().String(),
		},
	})
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := domain.SanitizeFilename(hdr.Filename)
	if err := domain.ValidateFilename(name); err != nil {
		writeError(w, http.StatusBadRequest, "Only PDF files are supported")
		return
	}

	id := uuid.NewString()
	path := filepath.Join(s.app.Config.UploadDir, id+"_"+name)
	if err := saveFile(path, file); err != nil {
		s.log.Error("api: save upload", "file_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to upload PDF: "+err.Error())
		return
	}

	ctx := r.Context()
	if _, err := s.app.Registry.Create(ctx, id, name, path); err != nil {
		s.log.Error("api: register upload", "file_id", id, "error", err)
		_ = os.Remove(path)
		writeError(w, http.StatusInternalServerError, "Failed to upload PDF: "+err.Error())
		return
	}
	s.app.Metrics.UploadsTotal.Inc()

	if err := s.app.Submitter.Submit(ctx, ingest.Job{FileID: id, Filename: name, FilePath: path}); err != nil {
		s.log.Error("api: submit job", "file_id", id, "error", err)
		_, _ = s.app.Registry.MarkFailed(ctx, id, err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to upload PDF: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, docclient.UploadResponse{
		FileID:   id,
		Filename: name,
		Status:   string(domain.StatusProcessing),
		Message:  "PDF uploaded successfully and is being processed",
	})
}

func saveFile(path string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := s.app.Registry.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	k := s.app.Config.MaxSearchResults
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "max_results must be a positive integer")
			return
		}
		k = n
	}

	hits, err := s.app.Searcher.Search(r.Context(), query, k)
	if err != nil {
		s.log.Error("api: search", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(hits) == 0 {
		writeJSON(w, http.StatusOK, docclient.SearchResponse{Results: []docclient.SearchResult{}, Message: "No relevant documents found"})
		return
	}
	results := make([]docclient.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = docclient.Result(h)
	}
	writeJSON(w, http.StatusOK, docclient.SearchResponse{Results: results, Query: query})
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.app.Registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]docclient.DocumentInfo, len(docs))
	for i, d := range docs {
		out[i] = docclient.Info(d)
	}
	writeJSON(w, http.StatusOK, docclient.DocumentsResponse{Documents: out})
}

// handleDelete removes vectors first, then the record and the file.
func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	doc, err := s.app.Registry.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.app.Store.DeleteByFileID(ctx, id); err != nil {
		s.log.Error("api: delete vectors", "file_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.app.Registry.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("api: remove file", "path", doc.FilePath, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, docclient.MessageResponse{Message: fmt.Sprintf("Document %s deleted successfully", id)})
}

func (s *server) handleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.app.Store.Reset(ctx); err != nil {
		s.log.Error("api: reset vectors", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	n, err := s.app.Registry.Reset(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := clearDir(s.app.Config.UploadDir); err != nil {
		s.log.Warn("api: clear uploads", "dir", s.app.Config.UploadDir, "error", err)
	}
	s.log.Info("api: knowledge base cleared", "documents", n)
	writeJSON(w, http.StatusOK, docclient.MessageResponse{Message: "All documents cleared successfully"})
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req docclient.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reply, err := s.app.RAG.Answer(r.Context(), req.Question)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sources := reply.Sources
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, docclient.AskResponse{Answer: reply.Text, Sources: sources, Context: reply.Context})
}
