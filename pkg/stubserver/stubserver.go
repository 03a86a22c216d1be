/*
Package stubserver serves a canned stand-in for the GeoGrid Server API.
It answers the same routes with fixed data so the probe can be exercised
without a browser-backed renderer.
*/
package stubserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/correlation"
	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/logging"
)

type Preset struct {
	ID       string  `json:"id"`
	Keyword  string  `json:"keyword"`
	Business string  `json:"business"`
	GridSize int     `json:"gridSize"`
	RadiusKm float64 `json:"radiusKm"`
	URL      string  `json:"url"`
}

type RenderMetadata struct {
	RenderTime int    `json:"renderTime"`
	Size       int    `json:"size"`
	Format     string `json:"format"`
	GridPoints int    `json:"gridPoints"`
}

type RenderMetrics struct {
	GeoRank      float64 `json:"geoRank"`
	AvgPosition  float64 `json:"avgPosition"`
	LocalPackPct float64 `json:"localPackPct"`
	Coverage     float64 `json:"coverage"`
}

type Base64Response struct {
	Success  bool           `json:"success"`
	Data     string         `json:"data"`
	Metadata RenderMetadata `json:"metadata"`
	Metrics  RenderMetrics  `json:"metrics"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// Failure makes a route answer with Status and a JSON error body.
type Failure struct {
	Status int
	Code   string
}

type Options struct {
	// Image is the render body. A generated PNG is used when nil.
	Image []byte

	// OmitRenderHeaders drops X-Render-Time, X-GeoRank and X-Grid-Points.
	OmitRenderHeaders bool

	// Base64Failure sets success=false in the base64 render with a 200 status.
	Base64Failure bool

	// Failures maps a request path to a forced error response.
	Failures map[string]Failure

	Logger logging.Logger
}

var presets = []Preset{
	{ID: "demo", Keyword: "comida para llevar", Business: "Restaurante El Buen Sabor", GridSize: 9, RadiusKm: 4, URL: "/api/preview/demo"},
	{ID: "small", Keyword: "pizza delivery", Business: "Pizza Express", GridSize: 5, RadiusKm: 2, URL: "/api/preview/small"},
	{ID: "large", Keyword: "coffee shop", Business: "Starbucks Central", GridSize: 11, RadiusKm: 6, URL: "/api/preview/large"},
}

// Server is an http.Handler recording what the probe sent it.
type Server struct {
	opts    Options
	image   []byte
	mux     *http.ServeMux
	started time.Time

	mu             sync.Mutex
	renderBodies   [][]byte
	correlationIDs []string
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	s := &Server{
		opts:    opts,
		image:   opts.Image,
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	if s.image == nil {
		s.image = DefaultImage()
	}

	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/health/ready", s.handleStatus("ready"))
	s.mux.HandleFunc("/health/live", s.handleStatus("alive"))
	s.mux.HandleFunc("/api/preview/presets", s.handlePresets)
	s.mux.HandleFunc("/api/render", s.handleRender)
	s.mux.HandleFunc("/api/render/base64", s.handleRenderBase64)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	enableCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.mu.Lock()
	s.correlationIDs = append(s.correlationIDs, correlation.FromRequest(r))
	s.mu.Unlock()

	s.opts.Logger.WithFields(map[string]interface{}{
		"method":         r.Method,
		"path":           r.URL.Path,
		"correlation_id": correlation.FromRequest(r),
	}).Debug("stub request")

	if f, ok := s.opts.Failures[r.URL.Path]; ok {
		writeError(w, f.Status, f.Code, "forced failure for "+r.URL.Path)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// Run serves s on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 2 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.WithField("addr", addr).Info("stub server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.opts.Logger.Info("stub server stopped")
	return nil
}

// RenderBodies returns the raw bodies received on both render routes, in order.
func (s *Server) RenderBodies() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.renderBodies))
	copy(out, s.renderBodies)
	return out
}

// CorrelationIDs returns the X-Correlation-ID of every request, in order.
func (s *Server) CorrelationIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.correlationIDs...)
}

// Image returns the bytes served by /api/render.
func (s *Server) Image() []byte {
	return s.image
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "route "+r.URL.Path+" not found")
		return
	}
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "GeoGrid SEO Local Server",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":         "/health",
			"ready":          "/health/ready",
			"live":           "/health/live",
			"render":         "POST /api/render",
			"renderBase64":   "POST /api/render/base64",
			"previewPresets": "GET /api/preview/presets",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Seconds(),
		"browser":   map[string]interface{}{"connected": true, "pages": 0},
	})
}

func (s *Server) handleStatus(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"presets": presets,
	})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if !s.readRenderBody(w, r) {
		return
	}
	if !s.opts.OmitRenderHeaders {
		w.Header().Set("X-Render-Time", "42ms")
		w.Header().Set("X-GeoRank", "4.25")
		w.Header().Set("X-Grid-Points", "81")
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(s.image)
}

func (s *Server) handleRenderBase64(w http.ResponseWriter, r *http.Request) {
	if !s.readRenderBody(w, r) {
		return
	}
	if !s.opts.OmitRenderHeaders {
		w.Header().Set("X-Render-Time", "42ms")
		w.Header().Set("X-Grid-Points", "81")
	}
	writeJSON(w, http.StatusOK, Base64Response{
		Success: !s.opts.Base64Failure,
		Data:    base64.StdEncoding.EncodeToString(s.image),
		Metadata: RenderMetadata{
			RenderTime: 42,
			Size:       len(s.image),
			Format:     "png",
			GridPoints: 81,
		},
		Metrics: RenderMetrics{
			GeoRank:      4.25,
			AvgPosition:  5.1,
			LocalPackPct: 38.5,
			Coverage:     92.6,
		},
	})
}

func (s *Server) readRenderBody(w http.ResponseWriter, r *http.Request) bool {
	if !allow(w, r, http.MethodPost) {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "read body: "+err.Error())
		return false
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "body must be JSON")
		return false
	}
	s.mu.Lock()
	s.renderBodies = append(s.renderBodies, body)
	s.mu.Unlock()
	return true
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", method+" only")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Error:   ErrorBody{Code: code, Message: msg},
	})
}

func enableCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", getenv("CORS_ALLOW_ORIGIN", "*"))
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+correlation.HeaderName)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

// DefaultImage returns a small PNG in the heat map's "top 3" green.
func DefaultImage() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 0x22, G: 0xc5, B: 0x5e, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
