package probe

import "net/http"

// BodyKind is what a successful response body is expected to hold.
type BodyKind int

const (
	BodyJSON BodyKind = iota
	BodyBinary
)

// accept is the Accept header sent for the kind.
func (k BodyKind) accept() string {
	if k == BodyBinary {
		return "image/*"
	}
	return "application/json"
}

// Endpoint describes one request the probe makes.
type Endpoint struct {
	Name    string
	Method  string
	Path    string
	Expects BodyKind
}

// The five endpoints every run exercises, in order.
var (
	Root         = Endpoint{Name: "root", Method: http.MethodGet, Path: "/", Expects: BodyJSON}
	Health       = Endpoint{Name: "health", Method: http.MethodGet, Path: "/health", Expects: BodyJSON}
	Presets      = Endpoint{Name: "presets", Method: http.MethodGet, Path: "/api/preview/presets", Expects: BodyJSON}
	Render       = Endpoint{Name: "render", Method: http.MethodPost, Path: "/api/render", Expects: BodyBinary}
	RenderBase64 = Endpoint{Name: "render_base64", Method: http.MethodPost, Path: "/api/render/base64", Expects: BodyJSON}
)

// Readiness and liveness checks, only run in extended mode.
var (
	Ready = Endpoint{Name: "ready", Method: http.MethodGet, Path: "/health/ready", Expects: BodyJSON}
	Live  = Endpoint{Name: "live", Method: http.MethodGet, Path: "/health/live", Expects: BodyJSON}
)

// Endpoints returns the fixed endpoint set in execution order.
func Endpoints() []Endpoint {
	return []Endpoint{Root, Health, Presets, Render, RenderBase64}
}

// Response headers set by the render endpoints.
const (
	HeaderRenderTime = "X-Render-Time"
	HeaderGeoRank    = "X-GeoRank"
	HeaderGridPoints = "X-Grid-Points"
)
