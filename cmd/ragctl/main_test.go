package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/docclient"
)

type fakeService struct {
	asked   atomic.Int32
	cleared atomic.Bool
}

func (f *fakeService) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ask", func(w http.ResponseWriter, r *http.Request) {
		var req docclient.AskRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.asked.Add(1)
		_ = json.NewEncoder(w).Encode(docclient.AskResponse{Answer: "echo: " + req.Question, Sources: []string{}})
	})
	mux.HandleFunc("POST /upload-pdf", func(w http.ResponseWriter, r *http.Request) {
		_, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(docclient.UploadResponse{FileID: "id-1", Filename: hdr.Filename, Status: "processing"})
	})
	mux.HandleFunc("GET /status/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "id-1" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(docclient.ErrorResponse{Detail: "File not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(domain.Document{ID: "id-1", Filename: "a.pdf", Status: domain.StatusFailed, Error: "No text found in PDF"})
	})
	mux.HandleFunc("GET /documents", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(docclient.DocumentsResponse{Documents: []docclient.DocumentInfo{
			{FileID: "id-1", Filename: "a.pdf", Status: "completed", ChunksCount: 3},
		}})
	})
	mux.HandleFunc("DELETE /documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(docclient.MessageResponse{Message: "Document " + r.PathValue("id") + " deleted successfully"})
	})
	mux.HandleFunc("DELETE /documents", func(w http.ResponseWriter, _ *http.Request) {
		f.cleared.Store(true)
		_ = json.NewEncoder(w).Encode(docclient.MessageResponse{Message: "All documents cleared successfully"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, url, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--server", url}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "ragctl", cmd.Use)
	require.NotNil(t, cmd.PersistentFlags().Lookup("server"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("timeout"))

	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"chat", "ask", "upload", "status", "documents"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_ServerFromEnv(t *testing.T) {
	t.Setenv(serverEnv, "http://docs.internal:9000")
	cmd := newRootCmd()
	assert.Equal(t, "http://docs.internal:9000", cmd.PersistentFlags().Lookup("server").DefValue)
}

func TestAsk(t *testing.T) {
	f := &fakeService{}
	srv := f.server(t)

	out, err := execute(t, srv.URL, "", "ask", "what", "is", "this?")
	require.NoError(t, err)
	assert.Equal(t, "echo: what is this?\n", out)
}

func TestAsk_RequiresQuestion(t *testing.T) {
	f := &fakeService{}
	_, err := execute(t, f.server(t).URL, "", "ask")
	assert.Error(t, err)
}

func TestChat(t *testing.T) {
	f := &fakeService{}
	srv := f.server(t)

	out, err := execute(t, srv.URL, "hello\n\n  \nsecond question\nquit\nnever sent\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "🤖 Bot: echo: hello")
	assert.Contains(t, out, "🤖 Bot: echo: second question")
	assert.Contains(t, out, "👋 Bot: Goodbye!")
	assert.NotContains(t, out, "never sent")
	assert.Equal(t, int32(2), f.asked.Load())
}

func TestChat_EOF(t *testing.T) {
	f := &fakeService{}
	out, err := execute(t, f.server(t).URL, "hi\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "Chat ended")
	assert.Equal(t, int32(1), f.asked.Load())
}

func TestUpload(t *testing.T) {
	f := &fakeService{}
	srv := f.server(t)
	path := filepath.Join(t.TempDir(), "manual.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644))

	out, err := execute(t, srv.URL, "", "upload", path)
	require.NoError(t, err)
	assert.Equal(t, "id-1\tmanual.pdf\tprocessing\n", out)

	_, err = execute(t, srv.URL, "", "upload", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	f := &fakeService{}
	srv := f.server(t)

	out, err := execute(t, srv.URL, "", "status", "id-1")
	require.NoError(t, err)
	assert.Contains(t, out, "status:   failed")
	assert.Contains(t, out, "error:    No text found in PDF")

	_, err = execute(t, srv.URL, "", "status", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocuments(t *testing.T) {
	f := &fakeService{}
	srv := f.server(t)

	out, err := execute(t, srv.URL, "", "documents", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "a.pdf")

	out, err = execute(t, srv.URL, "", "docs", "delete", "id-1")
	require.NoError(t, err)
	assert.Equal(t, "Document id-1 deleted successfully\n", out)
}

func TestDocumentsClear(t *testing.T) {
	t.Run("aborted", func(t *testing.T) {
		f := &fakeService{}
		out, err := execute(t, f.server(t).URL, "n\n", "documents", "clear")
		require.NoError(t, err)
		assert.Contains(t, out, "Aborted.")
		assert.False(t, f.cleared.Load())
	})
	t.Run("confirmed", func(t *testing.T) {
		f := &fakeService{}
		out, err := execute(t, f.server(t).URL, "yes\n", "documents", "clear")
		require.NoError(t, err)
		assert.Contains(t, out, "All documents cleared successfully")
		assert.True(t, f.cleared.Load())
	})
	t.Run("flag", func(t *testing.T) {
		f := &fakeService{}
		_, err := execute(t, f.server(t).URL, "", "documents", "clear", "--yes")
		require.NoError(t, err)
		assert.True(t, f.cleared.Load())
	})
}

func TestUpload_ManyKeepsOrder(t *testing.T) {
	f := &fakeService{}
	srv := f.server(t)
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"c.pdf", "a.pdf", "b.pdf"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4\n"), 0o644))
		paths = append(paths, p)
	}

	out, err := execute(t, srv.URL, "", append([]string{"upload", "-p", "2"}, paths...)...)
	require.NoError(t, err)
	assert.Equal(t, "id-1\tc.pdf\tprocessing\nid-1\ta.pdf\tprocessing\nid-1\tb.pdf\tprocessing\n", out)
}

func TestDocumentsList_StatusFilter(t *testing.T) {
	f := &fakeService{}
	srv := f.server(t)

	out, err := execute(t, srv.URL, "", "documents", "list", "--status", "failed")
	require.NoError(t, err)
	assert.NotContains(t, out, "a.pdf")
	assert.Contains(t, out, "No documents have been uploaded yet")
}
