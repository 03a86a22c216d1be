/*
Package probe drives the GeoGrid Server API through its fixed sequence of
checks: root, health, presets, binary render and base64 render. Every
operation writes a human readable block to the report writer and returns
an explicit error; Run chains them and stops at the first failure.
*/
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/correlation"
	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/logging"
	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/metrics"
)

const (
	// ServiceName tags logs, correlation IDs and breaker metrics.
	ServiceName = "geogrid-probe"

	// Placeholder is printed for a render header the server did not send.
	Placeholder = "n/a"
)

// Options configures a Probe.
type Options struct {
	// Out receives the report. Defaults to os.Stdout.
	Out io.Writer

	// RequestFile is the JSON fixture sent to both render endpoints.
	RequestFile string

	// OutputFile receives the binary render, overwriting any existing file.
	OutputFile string

	// Extended adds readiness and liveness checks after Health.
	Extended bool

	Logger  logging.Logger
	Metrics *metrics.MetricsCollector
	IDs     *correlation.IDGenerator
}

// Probe runs the GeoGrid API checks. It is not safe for concurrent use.
type Probe struct {
	client  *Client
	opts    Options
	out     io.Writer
	logger  logging.Logger
	metrics *metrics.MetricsCollector
	ids     *correlation.IDGenerator

	payload json.RawMessage
}

// New builds a Probe around client.
func New(client *Client, opts Options) *Probe {
	p := &Probe{
		client:  client,
		opts:    opts,
		out:     opts.Out,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		ids:     opts.IDs,
	}
	if p.out == nil {
		p.out = os.Stdout
	}
	if p.logger == nil {
		p.logger = logging.Discard()
	}
	if p.ids == nil {
		p.ids = correlation.NewIDGenerator(ServiceName)
	}
	return p
}

// CheckRoot prints the server description from GET /.
func (p *Probe) CheckRoot(ctx context.Context) error {
	return p.printJSON(ctx, Root)
}

// CheckHealth prints the health document from GET /health.
func (p *Probe) CheckHealth(ctx context.Context) error {
	return p.printJSON(ctx, Health)
}

// CheckReady prints the readiness document from GET /health/ready.
func (p *Probe) CheckReady(ctx context.Context) error {
	return p.printJSON(ctx, Ready)
}

// CheckLive prints the liveness document from GET /health/live.
func (p *Probe) CheckLive(ctx context.Context) error {
	return p.printJSON(ctx, Live)
}

// ListPresets prints the preview presets from GET /api/preview/presets.
func (p *Probe) ListPresets(ctx context.Context) error {
	return p.printJSON(ctx, Presets)
}

func (p *Probe) printJSON(ctx context.Context, ep Endpoint) error {
	resp, err := p.client.Do(ctx, ep, nil)
	if err != nil {
		return err
	}
	p.recordBytes(ep, len(resp.Body))

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return &Error{Kind: KindMalformed, Step: ep.Name, StatusCode: resp.StatusCode, Err: errors.New("empty response body")}
	}
	pretty, err := indent(resp.Body)
	if err != nil {
		return &Error{Kind: KindMalformed, Step: ep.Name, StatusCode: resp.StatusCode, Body: resp.Body, Err: err}
	}
	fmt.Fprintln(p.out, pretty)
	return nil
}

// RenderBinary posts payload to /api/render, writes the image to the
// output file and prints the status, render headers and image size.
// Missing render headers print as Placeholder.
func (p *Probe) RenderBinary(ctx context.Context, payload json.RawMessage) error {
	resp, err := p.client.Do(ctx, Render, payload)
	if err != nil {
		return err
	}
	p.recordBytes(Render, len(resp.Body))

	if err := os.WriteFile(p.opts.OutputFile, resp.Body, 0o644); err != nil {
		return newError(KindLocalIO, Render.Name, fmt.Errorf("write %s: %w", p.opts.OutputFile, err))
	}

	renderTime := resp.Header.Get(HeaderRenderTime)
	geoRank := resp.Header.Get(HeaderGeoRank)
	gridPoints := resp.Header.Get(HeaderGridPoints)
	p.recordRenderHeaders(renderTime, geoRank, gridPoints)

	fmt.Fprintf(p.out, "Status: %d\n", resp.StatusCode)
	fmt.Fprintf(p.out, "Render Time: %s\n", orPlaceholder(renderTime))
	fmt.Fprintf(p.out, "GeoRank: %s\n", orPlaceholder(geoRank))
	fmt.Fprintf(p.out, "Grid Points: %s\n", orPlaceholder(gridPoints))
	fmt.Fprintf(p.out, "Image size: %d bytes (%s)\n", len(resp.Body), humanize.Bytes(uint64(len(resp.Body))))
	fmt.Fprintf(p.out, "Image saved to %s\n", p.opts.OutputFile)
	return nil
}

// base64Render is the body of /api/render/base64. Pointers tell a missing
// field apart from a zero value.
type base64Render struct {
	Success  *bool           `json:"success"`
	Metadata json.RawMessage `json:"metadata"`
	Metrics  json.RawMessage `json:"metrics"`
	Data     *string         `json:"data"`
}

// RenderBase64 posts payload to /api/render/base64 and prints success,
// metadata, metrics and the length of the encoded image. success=false is
// printed like any other value and does not fail the step.
func (p *Probe) RenderBase64(ctx context.Context, payload json.RawMessage) error {
	resp, err := p.client.Do(ctx, RenderBase64, payload)
	if err != nil {
		return err
	}
	p.recordBytes(RenderBase64, len(resp.Body))

	malformed := func(err error) error {
		return &Error{Kind: KindMalformed, Step: RenderBase64.Name, StatusCode: resp.StatusCode, Body: resp.Body, Err: err}
	}

	var body base64Render
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return malformed(fmt.Errorf("decode base64 render: %w", err))
	}
	if body.Success == nil {
		return malformed(errors.New(`missing "success" field`))
	}
	if body.Data == nil {
		return malformed(errors.New(`missing "data" field`))
	}

	metadataJSON, err := indent(body.Metadata)
	if err != nil {
		return malformed(fmt.Errorf("metadata: %w", err))
	}
	metricsJSON, err := indent(body.Metrics)
	if err != nil {
		return malformed(fmt.Errorf("metrics: %w", err))
	}

	if !*body.Success {
		p.logger.WithField("step", RenderBase64.Name).Warn("server reported success=false")
	}

	fmt.Fprintf(p.out, "Success: %t\n", *body.Success)
	fmt.Fprintf(p.out, "Metadata: %s\n", metadataJSON)
	fmt.Fprintf(p.out, "Metrics: %s\n", metricsJSON)
	fmt.Fprintf(p.out, "Base64 length: %d characters\n", utf8.RuneCountInString(*body.Data))
	return nil
}

// LoadRenderRequest reads the render fixture at path. The bytes are kept
// as-is so both render calls send exactly what is on disk.
func LoadRenderRequest(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read render request: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("render request %s is not valid JSON", path)
	}
	return json.RawMessage(data), nil
}

// renderPayload loads the fixture on first use and returns the same bytes afterwards.
func (p *Probe) renderPayload(step string) (json.RawMessage, error) {
	if p.payload != nil {
		return p.payload, nil
	}
	payload, err := LoadRenderRequest(p.opts.RequestFile)
	if err != nil {
		return nil, newError(KindLocalIO, step, err)
	}
	p.payload = payload
	return payload, nil
}

func (p *Probe) recordBytes(ep Endpoint, n int) {
	if p.metrics != nil {
		p.metrics.SetResponseBytes(ep.Name, n)
	}
}

// recordRenderHeaders exports the render headers that parse; the server
// formats them as "<n>ms", a float and an integer.
func (p *Probe) recordRenderHeaders(renderTime, geoRank, gridPoints string) {
	if p.metrics == nil {
		return
	}
	log := p.logger.WithField("step", Render.Name)
	if renderTime != "" {
		if d, err := time.ParseDuration(renderTime); err == nil {
			p.metrics.SetRenderTime(Render.Name, d)
		} else {
			log.WithField("value", renderTime).Debug("unparsable render time header")
		}
	}
	if geoRank != "" {
		if v, err := strconv.ParseFloat(geoRank, 64); err == nil {
			p.metrics.SetGeoRank(Render.Name, v)
		} else {
			log.WithField("value", geoRank).Debug("unparsable georank header")
		}
	}
	if gridPoints != "" {
		if v, err := strconv.ParseFloat(gridPoints, 64); err == nil {
			p.metrics.SetGridPoints(Render.Name, v)
		} else {
			log.WithField("value", gridPoints).Debug("unparsable grid points header")
		}
	}
}

func orPlaceholder(v string) string {
	if v == "" {
		return Placeholder
	}
	return v
}

// indent pretty prints raw JSON with two spaces, keeping key order.
// An absent value prints as null.
func indent(raw []byte) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "null", nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	return buf.String(), nil
}
