package devbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"dubber/internal/logging"
	"dubber/internal/services/dubbing"
)

const (
	defaultStepInterval   = 3 * time.Second
	defaultMaxUploadBytes = 200 * 1024 * 1024
	shutdownTimeout       = 5 * time.Second

	startedMessage   = "Processing started"
	completedMessage = "Processing completed successfully"
	cancelledMessage = "Processing cancelled by user"
)

// Step is one simulated processing milestone.
type Step struct {
	Progress int
	Message  string
}

// DefaultSteps mirror the production pipeline.
var DefaultSteps = []Step{
	{Progress: 10, Message: "Extracting audio from video..."},
	{Progress: 20, Message: "Transcribing audio to text..."},
	{Progress: 40, Message: "Translating transcript..."},
	{Progress: 60, Message: "Generating speech from translation..."},
	{Progress: 80, Message: "Merging audio with video..."},
}

var allowedExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".mkv": true,
}

type job struct {
	id       string
	filename string
	language string
	content  []byte
	started  time.Time
	failAt   int
	// final is set once the job reaches a terminal status.
	final   string
	message string
	percent int
}

// Server is the simulated backend.
type Server struct {
	mu       sync.Mutex
	jobs     map[string]*job
	steps    []Step
	interval time.Duration
	maxBytes int64
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
	handler  http.Handler
}

// Option customizes the server.
type Option func(*Server)

// WithStepInterval sets how long each step lasts.
func WithStepInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSteps replaces the simulated milestones.
func WithSteps(steps []Step) Option {
	return func(s *Server) {
		if len(steps) > 0 {
			s.steps = append([]Step(nil), steps...)
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDFunc overrides job ID generation.
func WithIDFunc(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithMaxUploadBytes caps the multipart body size.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a simulated backend.
func New(opts ...Option) *Server {
	s := &Server{
		jobs:     make(map[string]*job),
		steps:    DefaultSteps,
		interval: defaultStepInterval,
		maxBytes: defaultMaxUploadBytes,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "devbackend")

	router := mux.NewRouter()
	s.routes(router)
	s.routes(router.PathPrefix("/api").Subrouter())
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", dubbing.RequestIDHeader},
	})
	s.handler = c.Handler(router)
	return s
}

func (s *Server) routes(r *mux.Router) {
	r.HandleFunc("/upload", s.handleUpload).Methods("POST")
	r.HandleFunc("/status/{id}", s.handleStatus).Methods("GET")
	r.HandleFunc("/cancel/{id}", s.handleCancel).Methods("POST")
	r.HandleFunc("/download/{id}", s.handleDownload).Methods("GET")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled. ready, when not nil,
// receives the bound address once the listener is open.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s, ReadHeaderTimeout: 10 * time.Second}
	if ready != nil {
		ready(ln.Addr())
	}
	s.logger.Info("development backend listening", logging.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "File too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No video part"})
		return
	}
	file, header, err := r.FormFile(dubbing.FileField)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No video part"})
		return
	}
	defer file.Close()
	filename := filepath.Base(strings.TrimSpace(header.Filename))
	if filename == "" || filename == "." {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No selected file"})
		return
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File type not allowed"})
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	lang := strings.TrimSpace(r.FormValue(dubbing.LanguageField))
	if lang == "" {
		lang = "en"
	}
	failAt := 0
	if raw := strings.TrimSpace(r.FormValue("fail_at")); raw != "" {
		failAt, err = strconv.Atoi(raw)
		if err != nil || failAt < 0 || failAt > 100 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "fail_at must be between 0 and 100"})
			return
		}
	}

	j := &job{
		id:       s.newID(),
		filename: filename,
		language: lang,
		content:  content,
		started:  s.now(),
		failAt:   failAt,
	}
	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	s.logger.Info("job accepted",
		logging.String(logging.FieldJobID, j.id),
		logging.String("file", filename),
		logging.String("language", lang),
		logging.Int("size_bytes", len(content)),
		logging.String(logging.FieldCorrelationID, r.Header.Get(dubbing.RequestIDHeader)),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  j.id,
		"status":  "processing",
		"message": startedMessage,
	})
}

// statusPayload is the flat status body the client decodes.
type statusPayload struct {
	Status           string `json:"status"`
	Progress         int    `json:"progress"`
	Message          string `json:"message"`
	OriginalFilename string `json:"original_filename"`
	TargetLanguage   string `json:"target_language"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	j, ok := s.jobs[mux.Vars(r)["id"]]
	var payload statusPayload
	if ok {
		payload = s.resolveLocked(j)
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Job not found"})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Job not found"})
		return
	}
	current := s.resolveLocked(j)
	if current.Status == dubbing.StatusCompleted || current.Status == dubbing.StatusFailed || current.Status == dubbing.StatusCancelled {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Job already " + current.Status})
		return
	}
	j.final = dubbing.StatusCancelled
	j.message = cancelledMessage
	j.percent = current.Progress
	s.mu.Unlock()

	s.logger.Info("job cancelled", logging.String(logging.FieldJobID, id))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Job cancelled successfully"})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	j, ok := s.jobs[mux.Vars(r)["id"]]
	var (
		status  statusPayload
		content []byte
	)
	if ok {
		status = s.resolveLocked(j)
		content = j.content
	}
	s.mu.Unlock()
	if !ok || status.Status != dubbing.StatusCompleted {
		http.NotFound(w, r)
		return
	}

	name := "dubbed_" + j.filename
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, name, j.started, bytes.NewReader(content))
}

// resolveLocked derives the job's state from elapsed time. Terminal states
// stick once reached.
func (s *Server) resolveLocked(j *job) statusPayload {
	payload := statusPayload{OriginalFilename: j.filename, TargetLanguage: j.language}
	if j.final != "" {
		payload.Status = j.final
		payload.Progress = j.percent
		payload.Message = j.message
		return payload
	}

	elapsed := s.now().Sub(j.started)
	reached := int(elapsed / s.interval)
	if reached <= 0 {
		payload.Status = dubbing.StatusPending
		payload.Message = startedMessage
		return payload
	}
	if reached > len(s.steps) {
		j.final = dubbing.StatusCompleted
		j.percent = 100
		j.message = completedMessage
		return s.resolveLocked(j)
	}
	step := s.steps[reached-1]
	if j.failAt > 0 && step.Progress >= j.failAt {
		j.final = dubbing.StatusFailed
		j.percent = step.Progress
		j.message = fmt.Sprintf("Processing failed: simulated failure at %d%%", j.failAt)
		return s.resolveLocked(j)
	}
	payload.Status = "processing"
	payload.Progress = step.Progress
	payload.Message = step.Message
	return payload
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
