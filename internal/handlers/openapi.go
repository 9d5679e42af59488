package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// OpenAPIHandler serves the API description as YAML and JSON
type OpenAPIHandler struct {
	spec []byte

	once     sync.Once
	jsonSpec []byte
	jsonErr  error
}

// NewOpenAPIHandler creates a new OpenAPI handler for the given YAML document
func NewOpenAPIHandler(spec []byte) *OpenAPIHandler {
	return &OpenAPIHandler{spec: spec}
}

// RegisterRoutes registers OpenAPI routes
func (h *OpenAPIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/openapi.yaml", h.ServeYAML).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/openapi.json", h.ServeJSON).Methods(http.MethodGet)
}

// ServeYAML serves the OpenAPI spec in YAML format
func (h *OpenAPIHandler) ServeYAML(w http.ResponseWriter, _ *http.Request) {
	if len(h.spec) == 0 {
		http.Error(w, "OpenAPI specification not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	_, _ = w.Write(h.spec)
}

// ServeJSON serves the OpenAPI spec converted to JSON
func (h *OpenAPIHandler) ServeJSON(w http.ResponseWriter, _ *http.Request) {
	if len(h.spec) == 0 {
		http.Error(w, "OpenAPI specification not found", http.StatusNotFound)
		return
	}

	h.once.Do(func() {
		var doc map[string]any
		if h.jsonErr = yaml.Unmarshal(h.spec, &doc); h.jsonErr != nil {
			return
		}
		h.jsonSpec, h.jsonErr = json.Marshal(doc)
	})
	if h.jsonErr != nil {
		http.Error(w, "Failed to parse OpenAPI specification", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(h.jsonSpec)
}
