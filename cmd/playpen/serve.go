package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/caffeineduck/playpen/orchestrator"
	"github.com/caffeineduck/playpen/output"
	"github.com/caffeineduck/playpen/workspace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server over a shared workspace",
	Long: `Start an HTTP server exposing a workspace of documents and running them.

Endpoints:
  GET    /documents                 List documents
  POST   /documents                 Create document {"language":"python"}
  GET    /documents/{id}            Get document
  PUT    /documents/{id}            Update {"content":"...","name":"..."}
  DELETE /documents/{id}            Delete document
  POST   /documents/{id}/select     Make document active
  POST   /documents/{id}/language   Change language {"language":"go"}
  POST   /documents/{id}/run        Run, returns console lines
  GET    /health                    Health check`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default 8080)")
	serveCmd.Flags().Duration("timeout", 0, "Execution timeout (default 30s)")
	rootCmd.AddCommand(serveCmd)
}

type server struct {
	ws     *workspace.Workspace
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

type documentRequest struct {
	Language string  `json:"language,omitempty"`
	Name     *string `json:"name,omitempty"`
	Content  *string `json:"content,omitempty"`
}

type documentsResponse struct {
	Documents []workspace.Document `json:"documents"`
	Active    string               `json:"active,omitempty"`
}

type runResponse struct {
	Success    bool     `json:"success"`
	Lines      []string `json:"lines"`
	DurationMs int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

func newServer(ws *workspace.Workspace, orch *orchestrator.Orchestrator, logger *zap.Logger) *server {
	return &server{ws: ws, orch: orch, logger: logger}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /documents", s.listDocuments)
	mux.HandleFunc("POST /documents", s.createDocument)
	mux.HandleFunc("GET /documents/{id}", s.getDocument)
	mux.HandleFunc("PUT /documents/{id}", s.updateDocument)
	mux.HandleFunc("DELETE /documents/{id}", s.deleteDocument)
	mux.HandleFunc("POST /documents/{id}/select", s.selectDocument)
	mux.HandleFunc("POST /documents/{id}/language", s.changeLanguage)
	mux.HandleFunc("POST /documents/{id}/run", s.runDocument)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var errBadRequest = errors.New("bad request")

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workspace.ErrUnknownLanguage), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	default:
		s.logger.Error("request failed", zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func decodeRequest(r *http.Request) (documentRequest, error) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return req, err
	}
	return req, nil
}

func (s *server) listDocuments(w http.ResponseWriter, r *http.Request) {
	resp := documentsResponse{Documents: s.ws.Documents()}
	if doc, ok := s.ws.Active(); ok {
		resp.Active = doc.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) createDocument(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Language == "" {
		req.Language = "python"
	}

	doc, err := s.ws.Create(req.Language)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.apply(doc.ID, req); err != nil {
		s.ws.Delete(doc.ID)
		s.writeError(w, err)
		return
	}
	doc, err = s.ws.Get(doc.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ws.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *server) updateDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	req, err := decodeRequest(r)
	if err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.apply(id, req); err != nil {
		s.writeError(w, err)
		return
	}
	s.getDocument(w, r)
}

// apply sets the content and name given in req on document id.
func (s *server) apply(id string, req documentRequest) error {
	if req.Content != nil {
		if err := s.ws.Edit(id, *req.Content); err != nil {
			return err
		}
	}
	if req.Name != nil {
		if err := s.ws.Rename(id, *req.Name); err != nil {
			if errors.Is(err, workspace.ErrNotFound) {
				return err
			}
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	return nil
}

func (s *server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) selectDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Select(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.getDocument(w, r)
}

func (s *server) changeLanguage(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil || req.Language == "" {
		http.Error(w, "language required", http.StatusBadRequest)
		return
	}
	if err := s.ws.ChangeLanguage(r.PathValue("id"), req.Language); err != nil {
		s.writeError(w, err)
		return
	}
	s.getDocument(w, r)
}

// runDocument runs the document with a console private to the request, so
// concurrent requests each get only their own lines.
func (s *server) runDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ws.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	buf := output.NewBuffer()
	res := s.orch.RunTo(r.Context(), doc, output.NewConsole(buf))

	resp := runResponse{
		Success:    res.Success,
		Lines:      buf.Plain(),
		DurationMs: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger.Named("server")
	orch := a.orchestrator(output.NewConsole(output.NewBuffer()))
	srv := newServer(workspace.New(nil), orch, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           srv.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	fmt.Fprintf(cmd.ErrOrStderr(), "playpen server listening on %s\n", httpServer.Addr)

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
