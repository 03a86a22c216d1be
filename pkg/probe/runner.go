package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/circuitbreaker"
	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/correlation"
	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/metrics"
)

// Outcome of a single step in a run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Step is one named, independently callable operation of a run.
type Step struct {
	Name  string
	Title string
	Run   func(ctx context.Context) error
}

// StepResult records what happened to a step.
type StepResult struct {
	Name     string
	Outcome  Outcome
	Duration time.Duration
	Err      error
}

// Report is the outcome of Run.
type Report struct {
	CorrelationID string
	Steps         []StepResult
	Duration      time.Duration
}

// OK reports whether every step succeeded.
func (r *Report) OK() bool {
	for _, s := range r.Steps {
		if s.Outcome != OutcomeSucceeded {
			return false
		}
	}
	return len(r.Steps) > 0
}

// Executed counts the steps that actually ran, failed ones included.
func (r *Report) Executed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome != OutcomeSkipped {
			n++
		}
	}
	return n
}

// Err returns the first failure, or nil.
func (r *Report) Err() error {
	for _, s := range r.Steps {
		if s.Outcome == OutcomeFailed {
			return s.Err
		}
	}
	return nil
}

// Steps returns the ordered step list. The render steps share one payload,
// read from the request file the first time either of them runs.
func (p *Probe) Steps() []Step {
	steps := []Step{
		{Name: Root.Name, Title: "Root endpoint", Run: p.CheckRoot},
		{Name: Health.Name, Title: "Health check", Run: p.CheckHealth},
	}
	if p.opts.Extended {
		steps = append(steps,
			Step{Name: Ready.Name, Title: "Readiness probe", Run: p.CheckReady},
			Step{Name: Live.Name, Title: "Liveness probe", Run: p.CheckLive},
		)
	}
	steps = append(steps,
		Step{Name: Presets.Name, Title: "Preview presets", Run: p.ListPresets},
		Step{
			Name:  Render.Name,
			Title: fmt.Sprintf("Render image (saving to %s)", p.opts.OutputFile),
			Run: func(ctx context.Context) error {
				payload, err := p.renderPayload(Render.Name)
				if err != nil {
					return err
				}
				return p.RenderBinary(ctx, payload)
			},
		},
		Step{
			Name:  RenderBase64.Name,
			Title: "Render base64",
			Run: func(ctx context.Context) error {
				payload, err := p.renderPayload(RenderBase64.Name)
				if err != nil {
					return err
				}
				return p.RenderBase64(ctx, payload)
			},
		},
	)
	return steps
}

// Run executes every step in order behind a fail-fast circuit breaker: the
// first failure prints one error line and every later step is skipped.
func (p *Probe) Run(ctx context.Context) *Report {
	id, ctx := correlation.GetOrGenerate(ctx, p.ids)
	log := p.logger.WithCorrelationID(id)
	tracker := metrics.NewLatencyTracker()

	var collector circuitbreaker.MetricsCollector
	if p.metrics != nil {
		collector = p.metrics
	}
	breaker := circuitbreaker.NewFailFast(ServiceName, collector)

	fmt.Fprintln(p.out, "Testing GeoGrid Server API")
	fmt.Fprintln(p.out, "================================")
	fmt.Fprintln(p.out)

	log.WithField("base_url", p.client.BaseURL()).Info("probe run started")

	steps := p.Steps()
	report := &Report{CorrelationID: id, Steps: make([]StepResult, 0, len(steps))}

	for i, step := range steps {
		executed := false
		start := time.Now()
		err := breaker.Call(func() error {
			executed = true
			fmt.Fprintf(p.out, "[%d/%d] %s\n", i+1, len(steps), step.Title)
			return step.Run(ctx)
		})
		tracker.Checkpoint(step.Name)
		elapsed, _ := tracker.GetCheckpoint(step.Name)

		res := StepResult{Name: step.Name, Duration: time.Since(start)}
		stepLog := log.WithFields(map[string]interface{}{
			"step":        step.Name,
			"duration_ms": res.Duration.Milliseconds(),
			"elapsed_ms":  elapsed.Milliseconds(),
		})

		switch {
		case !executed:
			res.Outcome = OutcomeSkipped
			res.Duration = 0
			stepLog.Debug("step skipped")
		case err != nil:
			res.Outcome = OutcomeFailed
			res.Err = err
			p.printError(err)
			stepLog.Error("step failed", err)
		default:
			res.Outcome = OutcomeSucceeded
			fmt.Fprintln(p.out)
			stepLog.Info("step succeeded")
		}

		if p.metrics != nil {
			p.metrics.RecordStep(step.Name, string(res.Outcome), res.Duration)
		}
		report.Steps = append(report.Steps, res)
	}

	report.Duration = tracker.GetDuration()
	if report.OK() {
		fmt.Fprintln(p.out, "All tests completed!")
	}
	if p.metrics != nil {
		p.metrics.RecordRun(report.OK(), time.Now())
	}

	fields := map[string]interface{}{
		"ok":            report.OK(),
		"executed":      report.Executed(),
		"duration_ms":   report.Duration.Milliseconds(),
		"breaker_state": breaker.State().String(),
	}
	if err := report.Err(); err != nil {
		fields["error"] = err.Error()
	}
	log.WithFields(fields).Info("probe run finished")

	return report
}

// printError writes the single error line, followed by the raw response
// body when the failure carried one.
func (p *Probe) printError(err error) {
	fmt.Fprintf(p.out, "Error: %v\n", err)

	var perr *Error
	if errors.As(err, &perr) && len(perr.Body) > 0 {
		fmt.Fprintf(p.out, "Response: %s\n", strings.TrimSpace(string(perr.Body)))
	}
}
