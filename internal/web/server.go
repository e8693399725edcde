package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"photo-shrinker-go/internal/collection"
	"photo-shrinker-go/internal/compressor"
	"photo-shrinker-go/internal/config"
	"photo-shrinker-go/internal/document"
	"photo-shrinker-go/internal/export"
	"photo-shrinker-go/internal/logger"
	"photo-shrinker-go/internal/metrics"
	"photo-shrinker-go/internal/source"
	"photo-shrinker-go/internal/statistics"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	images     *collection.Collection
	stats      *statistics.Statistics
	metrics    *metrics.Metrics
	compressor compressor.Compressor
	assembler  *document.Assembler

	sinkMutex sync.Mutex
	sink      export.Sink
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ImageInfo describes one collection entry without its payload.
type ImageInfo struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Size      int64   `json:"size"`
	Quality   int     `json:"quality"`
	Scale     float64 `json:"scale"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	OverLimit bool    `json:"over_limit"`
	AddedAt   string  `json:"added_at"`
}

// ItemInfo is the per-upload outcome returned by POST /api/images.
type ItemInfo struct {
	Index        int        `json:"index"`
	Name         string     `json:"name"`
	OriginalSize int64      `json:"original_size"`
	Success      bool       `json:"success"`
	Rejected     bool       `json:"rejected,omitempty"`
	Error        string     `json:"error,omitempty"`
	Iterations   int        `json:"iterations,omitempty"`
	Image        *ImageInfo `json:"image,omitempty"`
}

// DocumentInfo is broadcast after a document has been assembled.
type DocumentInfo struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Quality      int    `json:"quality"`
	Pages        int    `json:"pages"`
	Builds       int    `json:"builds"`
	WithinBudget bool   `json:"within_budget"`
}

func NewServer(cfg *config.Config, log *logrus.Logger) *Server {
	log = logger.OrDiscard(log)
	m := metrics.New()

	geometry, err := document.NewGeometry(cfg.Document.PageSize, cfg.Document.MarginMM)
	if err != nil {
		log.WithError(err).Warn("Invalid document geometry, using A4")
		geometry = document.DefaultGeometry()
	}

	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
		images:  collection.New(),
		stats:   statistics.NewStatistics(),
		metrics: m,
		compressor: compressor.NewBudgetCompressor(
			compressor.PolicyFromConfig(cfg.Compression),
			compressor.WithLogger(log),
		),
		assembler: document.NewAssembler(document.Options{
			Policy:   document.PolicyFromConfig(cfg.Document),
			Geometry: geometry,
			Name:     cfg.Document.OutputName,
			Logger:   log,
		}),
	}

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Images returns the collection of compressed images held by the server.
func (s *Server) Images() *collection.Collection {
	return s.images
}

func (s *Server) setupRoutes() {
	// API routes
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/images", s.handleCompress).Methods("POST")
	api.HandleFunc("/images", s.handleListImages).Methods("GET")
	api.HandleFunc("/images/export", s.handleExport).Methods("POST")
	api.HandleFunc("/images/{id}", s.handleGetImage).Methods("GET")
	api.HandleFunc("/images/{id}", s.handleRemoveImage).Methods("DELETE")
	api.HandleFunc("/document", s.handleDocument).Methods("POST")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")

	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	files, targetKB, err := s.parseUpload(w, r, s.cfg.Compression.TargetKB)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	inputs := make([]compressor.Input, 0, len(files))
	for _, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			s.writeError(w, fmt.Sprintf("Failed to read %s: %v", fh.Filename, err), http.StatusBadRequest)
			return
		}
		inputs = append(inputs, compressor.Input{Name: fh.Filename, Data: data})
	}

	added := make(map[int]collection.Entry, len(inputs))
	listener := &collection.Listener{
		Collection: s.images,
		OnAdded: func(e collection.Entry, res compressor.ItemResult) {
			added[res.Index] = e
			s.broadcastWSMessage("image_compressed", entryInfo(e))
		},
		OnFailed: func(res compressor.ItemResult) {
			s.broadcastWSMessage("image_failed", map[string]interface{}{
				"name":     res.Name,
				"rejected": errors.Is(res.Err, source.ErrUnsupportedFormat),
				"error":    res.Err.Error(),
			})
		},
	}

	batch := compressor.NewBatchProcessor(s.compressor, compressor.BatchOptions{
		Workers:  s.cfg.Performance.WorkerThreads,
		Logger:   s.log,
		Stats:    s.stats,
		Metrics:  s.metrics,
		Listener: listener,
	})
	results := batch.Process(r.Context(), inputs, config.ImageBudgetBytes(targetKB))

	items := make([]ItemInfo, len(results))
	for i, res := range results {
		item := ItemInfo{Index: res.Index, Name: res.Name, OriginalSize: res.OriginalSize, Success: res.Success()}
		if res.Success() {
			item.Iterations = res.Image.Iterations
			if e, ok := added[res.Index]; ok {
				info := entryInfo(e)
				item.Image = &info
			}
		} else {
			item.Rejected = errors.Is(res.Err, source.ErrUnsupportedFormat)
			item.Error = res.Err.Error()
		}
		items[i] = item
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: fmt.Sprintf("Processed %d images", len(items)),
		Data: map[string]interface{}{
			"target_bytes": config.ImageBudgetBytes(targetKB),
			"items":        items,
		},
	})
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	entries := s.images.List()
	infos := make([]ImageInfo, len(entries))
	for i, e := range entries {
		infos[i] = entryInfo(e)
	}
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"images":     infos,
			"total_size": s.images.TotalSize(),
		},
	})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	e, ok := s.images.Get(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, "Image not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", compressor.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", e.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(e.Size, 10))
	w.Write(e.Data)
}

func (s *Server) handleRemoveImage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	removed, ok := s.images.RemoveID(id)
	if !ok {
		s.writeError(w, "Image not found", http.StatusNotFound)
		return
	}
	for i := 0; i < removed; i++ {
		s.stats.IncrementImagesRemoved()
	}

	s.broadcastWSMessage("image_removed", map[string]interface{}{
		"id":      id,
		"removed": removed,
	})
	s.writeJSON(w, APIResponse{
		Success: true,
		Message: fmt.Sprintf("Removed %d images", removed),
		Data:    map[string]interface{}{"removed": removed},
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sink, err := s.exportSink(r.Context())
	if err != nil {
		s.writeError(w, fmt.Sprintf("Export unavailable: %v", err), http.StatusInternalServerError)
		return
	}

	rep := export.ExportAll(r.Context(), sink, s.images.List(), s.log)
	failed := make([]map[string]string, len(rep.Failed))
	for i, f := range rep.Failed {
		failed[i] = map[string]string{"name": f.Name, "error": f.Err.Error()}
	}

	s.writeJSON(w, APIResponse{
		Success: len(rep.Failed) == 0,
		Message: fmt.Sprintf("Exported %d images", len(rep.Written)),
		Data: map[string]interface{}{
			"written": rep.Written,
			"failed":  failed,
		},
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	files, targetKB, err := s.parseUpload(w, r, s.cfg.Document.TargetKB)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	images := make([]*source.SourceImage, 0, len(files))
	for _, fh := range files {
		img, err := decodePart(fh)
		if err != nil {
			s.documentFailed(err)
			s.writeError(w, fmt.Sprintf("Cannot use %s: %v", fh.Filename, err), http.StatusBadRequest)
			return
		}
		images = append(images, img)
	}

	doc, err := s.assembler.Assemble(r.Context(), images, config.DocumentBudgetBytes(targetKB))
	if err != nil {
		s.documentFailed(err)
		status := http.StatusInternalServerError
		if errors.Is(err, document.ErrEmptyInput) {
			status = http.StatusBadRequest
		}
		s.writeError(w, fmt.Sprintf("Document assembly failed: %v", err), status)
		return
	}

	s.stats.RecordDocument(len(doc.Pages), doc.Builds, doc.Size)
	s.metrics.ObserveDocument(doc.Builds, doc.Quality, doc.Size)
	s.broadcastWSMessage("document_assembled", DocumentInfo{
		Name:         doc.Name,
		Size:         doc.Size,
		Quality:      doc.Quality,
		Pages:        len(doc.Pages),
		Builds:       doc.Builds,
		WithinBudget: doc.WithinBudget,
	})

	w.Header().Set("Content-Type", document.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	w.Header().Set("X-Document-Quality", strconv.Itoa(doc.Quality))
	w.Header().Set("X-Document-Builds", strconv.Itoa(doc.Builds))
	w.Write(doc.Data)
}

func (s *Server) documentFailed(err error) {
	s.stats.IncrementDocumentsFailed()
	s.stats.AddError(s.cfg.Document.OutputName, "assemble", err.Error())
	s.metrics.DocumentFailed()
	s.broadcastWSMessage("document_failed", map[string]interface{}{
		"error": err.Error(),
	})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"summary": s.stats.GetSummary(),
			"images":  s.stats.Snapshot(),
			"stored":  s.images.Len(),
		},
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	// Remove client on disconnect
	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// parseUpload reads the multipart form and returns the uploaded files in
// form order together with the requested budget in KB.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request, defaultKB int) ([]*multipart.FileHeader, int, error) {
	maxBytes := int64(s.cfg.Performance.MaxUploadMB) << 20
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, 0, fmt.Errorf("invalid multipart form: %v", err)
	}

	files := r.MultipartForm.File["files[]"]
	if len(files) == 0 {
		files = r.MultipartForm.File["files"]
	}
	if len(files) == 0 {
		return nil, 0, errors.New("no files uploaded")
	}

	targetKB := defaultKB
	if v := r.FormValue("target_kb"); v != "" {
		kb, err := strconv.Atoi(v)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid target_kb %q", v)
		}
		targetKB = kb
	}
	return files, targetKB, nil
}

func (s *Server) exportSink(ctx context.Context) (export.Sink, error) {
	s.sinkMutex.Lock()
	defer s.sinkMutex.Unlock()
	if s.sink != nil {
		return s.sink, nil
	}
	sink, err := export.NewSink(ctx, s.cfg.Export, s.log)
	if err != nil {
		return nil, err
	}
	s.sink = sink
	return sink, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func decodePart(fh *multipart.FileHeader) (*source.SourceImage, error) {
	data, err := readPart(fh)
	if err != nil {
		return nil, err
	}
	return source.Decode(fh.Filename, data)
}

func entryInfo(e collection.Entry) ImageInfo {
	return ImageInfo{
		ID:        e.ID,
		Name:      e.Name,
		Size:      e.Size,
		Quality:   e.Quality,
		Scale:     e.Scale,
		Width:     e.Width,
		Height:    e.Height,
		OverLimit: e.OverLimit,
		AddedAt:   e.AddedAt.Format(time.RFC3339),
	}
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	// A connection allows a single writer at a time.
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		err := conn.WriteMessage(websocket.TextMessage, msgBytes)
		if err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			// Remove failed connection
			go func(c *websocket.Conn) {
				s.wsMutex.Lock()
				delete(s.wsClients, c)
				s.wsMutex.Unlock()
				c.Close()
			}(conn)
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
