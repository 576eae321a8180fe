package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kiesman99/tilesheet/internal/api"
	"github.com/kiesman99/tilesheet/internal/stitcher"
	"github.com/kiesman99/tilesheet/pkg/tile"
)

// DefaultMaxUpload bounds the size of a multipart upload.
const DefaultMaxUpload = 32 << 20

// tilesField is the multipart field holding the tile files.
const tilesField = "tiles"

// Server implements the ServerInterface from the api package
type Server struct {
	startTime time.Time
	version   string
	maxUpload int64
	processor *tile.Processor
}

// NewServer creates a new server instance
func NewServer(version string, maxUpload int64) *Server {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Server{
		startTime: time.Now(),
		version:   version,
		maxUpload: maxUpload,
		processor: tile.NewProcessor(false),
	}
}

// Router builds the chi router with middleware and the API mounted at /api/v1.
func (s *Server) Router(timeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors)

	r.Route("/api/v1", func(r chi.Router) {
		api.HandlerWithOptions(s, api.ChiServerOptions{
			BaseRouter: r,
			ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
				requestID := requestIDFrom(r)
				s.writeErrorResponse(w, http.StatusBadRequest, api.InvalidRequest, err.Error(), nil, &requestID)
			},
		})
	})

	// Legacy health endpoint without the /api/v1 prefix
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/v1/health", http.StatusMovedPermanently)
	})

	return r
}

// cors allows browser clients on other origins to call the API.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// CreateTileSheet combines the uploaded tiles into a sheet and returns it.
func (s *Server) CreateTileSheet(w http.ResponseWriter, r *http.Request, params api.CreateTileSheetParams) {
	requestID := requestIDFrom(r)

	opts, err := s.convertToStitcherOptions(params)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, api.InvalidRequest, err.Error(), nil, &requestID)
		return
	}

	tiles, err := s.readTiles(w, r)
	if err != nil {
		s.handleStitchingError(w, err, &requestID)
		return
	}

	result, err := stitcher.New(s.processor).Stitch(r.Context(), tiles, opts)
	if err != nil {
		s.handleStitchingError(w, err, &requestID)
		return
	}

	w.Header().Set("Content-Type", tile.ContentType(opts.OutputFormat))
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Tilesheet-Grid", fmt.Sprintf("%dx%d", result.Plan.TilesPerRow, result.Plan.TilesPerColumn))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.ImageData)))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.ImageData); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// convertToStitcherOptions converts query parameters to stitcher options
func (s *Server) convertToStitcherOptions(params api.CreateTileSheetParams) (*stitcher.Options, error) {
	opts := &stitcher.Options{}

	if params.BuildCardinals != nil {
		opts.BuildCardinals = *params.BuildCardinals
	}

	format := string(api.Png)
	if params.Format != nil {
		format = string(*params.Format)
	}
	f, err := tile.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	opts.OutputFormat = f

	if params.Background != nil {
		bg, err := tile.ParseColor(*params.Background)
		if err != nil {
			return nil, err
		}
		opts.Background = bg
	}

	return opts, nil
}

// readTiles decodes every file in the tiles field, in upload order. Any
// undecodable part fails the whole request.
func (s *Server) readTiles(w http.ResponseWriter, r *http.Request) (tile.Set, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return nil, &tile.Error{Kind: tile.InvalidInput, Err: fmt.Errorf("invalid multipart body: %v", err)}
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[tilesField]
	if len(headers) == 0 {
		return nil, tile.Errorf(tile.InvalidInput, "no files in %q field", tilesField)
	}

	tiles := make(tile.Set, 0, len(headers))
	for i, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, &partError{index: i, err: &tile.Error{Kind: tile.Decode, Path: fh.Filename, Err: err}}
		}
		src, err := s.processor.DecodeImage(fh.Filename, f)
		f.Close()
		if err != nil {
			return nil, &partError{index: i, err: err}
		}
		tiles = append(tiles, src)
	}
	return tiles, nil
}

// partError records the position of a failing upload within the tiles field.
type partError struct {
	index int
	err   error
}

func (e *partError) Error() string { return e.err.Error() }
func (e *partError) Unwrap() error { return e.err }

// handleStitchingError maps pipeline errors to API error responses
func (s *Server) handleStitchingError(w http.ResponseWriter, err error, requestID *string) {
	var tileErr *tile.Error
	if errors.As(err, &tileErr) {
		var part *string
		if tileErr.Path != "" {
			part = &tileErr.Path
		}

		switch tileErr.Kind {
		case tile.InvalidInput:
			s.writeErrorResponse(w, http.StatusBadRequest, api.InvalidRequest, tileErr.Err.Error(), part, requestID)
		case tile.Decode:
			response := api.ErrorResponse{
				Error:     api.DecodeError,
				Message:   tileErr.Err.Error(),
				Part:      part,
				RequestId: requestID,
			}
			var pe *partError
			if errors.As(err, &pe) {
				response.Details = &map[string]interface{}{"index": pe.index}
			}
			s.writeError(w, http.StatusUnprocessableEntity, response)
		default:
			s.writeErrorResponse(w, http.StatusInternalServerError, api.EncodeError, tileErr.Err.Error(), part, requestID)
		}
		return
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, api.InternalError,
			"Request cancelled before the sheet was built", nil, requestID)
		return
	}

	s.writeErrorResponse(w, http.StatusInternalServerError, api.InternalError,
		"Internal server error", nil, requestID)
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, part, requestID *string) {
	s.writeError(w, statusCode, api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		Part:      part,
		RequestId: requestID,
	})
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, response api.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding error response: %v", err)
	}
}

// requestIDFrom returns the id assigned by the RequestID middleware, or a
// fresh one when the handler runs without it.
func requestIDFrom(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}
