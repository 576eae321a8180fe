// Package api defines the HTTP contract of the tile sheet service and the chi
// routing that binds it to a ServerInterface implementation.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// Defines values for HealthResponseStatus.
const (
	Healthy   HealthResponseStatus = "healthy"
	Unhealthy HealthResponseStatus = "unhealthy"
)

// Defines values for OutputFormat.
const (
	Bmp  OutputFormat = "bmp"
	Gif  OutputFormat = "gif"
	Jpeg OutputFormat = "jpeg"
	Png  OutputFormat = "png"
	Tiff OutputFormat = "tiff"
)

// Error codes returned in ErrorResponse.Error.
const (
	InvalidRequest = "INVALID_REQUEST"
	DecodeError    = "DECODE_ERROR"
	EncodeError    = "ENCODE_ERROR"
	InternalError  = "INTERNAL_ERROR"
)

// HealthResponseStatus defines model for HealthResponse.Status.
type HealthResponseStatus string

// OutputFormat defines model for the format query parameter.
type OutputFormat string

// HealthResponse defines model for HealthResponse.
type HealthResponse struct {
	Status    HealthResponseStatus `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	Uptime    *int                 `json:"uptime,omitempty"`
	Version   *string              `json:"version,omitempty"`
}

// ErrorResponse defines model for ErrorResponse. On DECODE_ERROR, Details
// holds the zero-based "index" of the failing part.
type ErrorResponse struct {
	Error     string                  `json:"error"`
	Message   string                  `json:"message"`
	Part      *string                 `json:"part,omitempty"`
	RequestId *string                 `json:"request_id,omitempty"`
	Details   *map[string]interface{} `json:"details,omitempty"`
}

// CreateTileSheetParams defines parameters for CreateTileSheet.
type CreateTileSheetParams struct {
	BuildCardinals *bool         `form:"build_cardinals,omitempty" json:"build_cardinals,omitempty"`
	Format         *OutputFormat `form:"format,omitempty" json:"format,omitempty"`
	Background     *string       `form:"background,omitempty" json:"background,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Health check
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// Combine uploaded tiles into a sheet
	// (POST /tilesheet)
	CreateTileSheet(w http.ResponseWriter, r *http.Request, params CreateTileSheetParams)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.Handler.GetHealth(w, r)
}

// CreateTileSheet operation middleware
func (siw *ServerInterfaceWrapper) CreateTileSheet(w http.ResponseWriter, r *http.Request) {
	var params CreateTileSheetParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "build_cardinals", query, &params.BuildCardinals); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "build_cardinals", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "format", query, &params.Format); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "format", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "background", query, &params.Background); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "background", Err: err})
		return
	}

	siw.Handler.CreateTileSheet(w, r, params)
}

// InvalidParamFormatError is passed to ErrorHandlerFunc when a query
// parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates http.Handler with routing matching the API.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions creates http.Handler with additional options
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health", wrapper.GetHealth)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/tilesheet", wrapper.CreateTileSheet)
	})

	return r
}
