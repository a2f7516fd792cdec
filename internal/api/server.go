package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pbaille/annot/internal/annotation"
	"github.com/pbaille/annot/internal/domain"
	"github.com/pbaille/annot/internal/taxonomy"
	"github.com/pbaille/annot/internal/workspace"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server exposes one annotation session over HTTP
type Server struct {
	mu      sync.Mutex
	store   *annotation.Store
	ws      *workspace.Workspace
	lang    string
	log     *zap.Logger
	session string
}

// New creates a new API server. session is reported by /session and
// should match the id the logger stamps on its entries.
func New(s *annotation.Store, ws *workspace.Workspace, lang, session string, log *zap.Logger) *Server {
	return &Server{
		store:   s,
		ws:      ws,
		lang:    lang,
		log:     log,
		session: session,
	}
}

// Handler returns the routes wrapped with CORS
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/session", s.sessionInfo).Methods(http.MethodGet)

	// Taxonomy
	r.HandleFunc("/labels", s.listLabels).Methods(http.MethodGet)

	// Records
	r.HandleFunc("/records", s.listRecords).Methods(http.MethodGet)
	r.HandleFunc("/records/{id}", s.getRecord).Methods(http.MethodGet)
	r.HandleFunc("/records/{id}/labels/{key}", s.addLabel).Methods(http.MethodPost)
	r.HandleFunc("/records/{id}/labels/{key}", s.removeLabel).Methods(http.MethodDelete)
	r.HandleFunc("/records/{id}/labels/{key}/toggle", s.toggleLabel).Methods(http.MethodPost)

	// Session-wide views
	r.HandleFunc("/summary", s.summary).Methods(http.MethodGet)
	r.HandleFunc("/annotations", s.exportAnnotations).Methods(http.MethodGet)
	r.HandleFunc("/annotations", s.importAnnotations).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.reset).Methods(http.MethodPost)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

// Run serves on addr until ctx is done
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", zap.String("addr", addr), zap.String("data_dir", s.ws.Dir()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) sessionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"session": s.session})
}

func (s *Server) listLabels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"labels": s.store.Taxonomy().Options(),
	})
}

// RecordView is a record with its encodings
type RecordView struct {
	ID               string   `json:"id"`
	Labels           []string `json:"labels"`
	SubLabels        []string `json:"sub_labels"`
	LabelEncoding    string   `json:"label_encoding"`
	SubLabelEncoding string   `json:"sub_label_encoding"`
}

func (s *Server) view(id string) (RecordView, error) {
	v := RecordView{ID: id, Labels: []string{}, SubLabels: []string{}}
	if rec, ok := s.store.Record(id); ok {
		v.Labels = rec.Labels.Keys()
		v.SubLabels = rec.SubLabels.Keys()
	}
	var err error
	if v.LabelEncoding, err = s.store.Encode(id, domain.TopLevel); err != nil {
		return v, err
	}
	if v.SubLabelEncoding, err = s.store.Encode(id, domain.Sub); err != nil {
		return v, err
	}
	return v, nil
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	files, err := s.ws.Files()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]RecordView, 0, len(files))
	for _, f := range files {
		v, err := s.view(f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		records = append(records, v)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
	})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == annotation.DefaultID {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	s.mu.Lock()
	v, err := s.view(id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	content, err := s.ws.Content(id)
	if err != nil {
		s.log.Debug("record content unavailable", zap.String("id", id), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"record":  v,
		"content": content,
	})
}

func (s *Server) addLabel(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(id, key string) error {
		return s.store.AddLabel(id, key)
	})
}

func (s *Server) removeLabel(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(id, key string) error {
		return s.store.RemoveLabel(id, key)
	})
}

func (s *Server) toggleLabel(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(id, key string) error {
		_, err := s.store.Toggle(id, key)
		return err
	})
}

// mutate applies fn under the session lock, persists the outputs and
// answers with the updated record
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(id, key string) error) {
	vars := mux.Vars(r)
	id, key := vars["id"], vars["key"]
	if id == annotation.DefaultID {
		writeError(w, http.StatusBadRequest, "reserved record id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(id, key); err != nil {
		if errors.Is(err, taxonomy.ErrNotFound) || errors.Is(err, taxonomy.ErrUnknownKey) ||
			errors.Is(err, annotation.ErrReservedID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.ws.Persist(s.store, id, s.lang); err != nil {
		s.log.Error("persist failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	v, err := s.view(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Debug("label changed", zap.String("id", id), zap.String("key", key),
		zap.String("labels", v.LabelEncoding), zap.String("sub_labels", v.SubLabelEncoding))
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sum := s.store.Summarize()
	s.mu.Unlock()

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sum.Text(s.lang)))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) exportAnnotations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	text, err := s.store.OutputAnnotations()
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}

func (s *Server) importAnnotations(w http.ResponseWriter, r *http.Request) {
	annotations, err := annotation.ParseAnnotations(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, dropped, err := s.ws.Import(s.store, annotations)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.saveAll(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if dropped > 0 {
		s.log.Warn("annotations dropped on import", zap.Int("dropped", dropped), zap.String("data_dir", s.ws.Dir()))
	}
	s.log.Info("annotations imported", zap.Int("records", n), zap.Int("dropped", dropped))
	writeJSON(w, http.StatusOK, map[string]int{"records": n, "dropped": dropped})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Reset()
	if err := s.saveAll(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("session reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// saveAll rewrites the annotation and summary files after a session-wide change
func (s *Server) saveAll() error {
	if err := s.ws.SaveState(s.store); err != nil {
		return err
	}
	return s.ws.WriteSummary(s.store.SummarizeByTaxonomy().Text(s.lang))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
