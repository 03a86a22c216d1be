package correlation

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// HeaderName carries the correlation ID on every probe request.
const HeaderName = "X-Correlation-ID"

// IDGenerator generates correlation IDs
type IDGenerator struct {
	serviceName string
	rng         *rand.Rand
	now         func() time.Time
}

// NewIDGenerator creates a new correlation ID generator
func NewIDGenerator(serviceName string) *IDGenerator {
	return &IDGenerator{
		serviceName: serviceName,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

// Generate creates a new correlation ID
// Format: {service}-{timestamp}-{random}
// Example: geogrid-probe-1699564823-a3f9c2
func (g *IDGenerator) Generate() string {
	timestamp := g.now().Unix()
	random := g.rng.Intn(0xFFFFFF)
	return fmt.Sprintf("%s-%d-%06x", g.serviceName, timestamp, random)
}

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// CorrelationIDKey is the context key for correlation ID
const CorrelationIDKey contextKey = "correlation_id"

// WithID adds correlation ID to context
func WithID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// FromContext retrieves correlation ID from context
func FromContext(ctx context.Context) (string, bool) {
	correlationID, ok := ctx.Value(CorrelationIDKey).(string)
	return correlationID, ok && correlationID != ""
}

// GetOrGenerate retrieves correlation ID from context or generates a new one
func GetOrGenerate(ctx context.Context, generator *IDGenerator) (string, context.Context) {
	if correlationID, ok := FromContext(ctx); ok {
		return correlationID, ctx
	}

	correlationID := generator.Generate()
	return correlationID, WithID(ctx, correlationID)
}

// Inject copies the context's correlation ID, if any, onto req.
func Inject(ctx context.Context, req *http.Request) {
	if id, ok := FromContext(ctx); ok {
		req.Header.Set(HeaderName, id)
	}
}

// FromRequest returns the correlation ID a client sent, or "".
func FromRequest(r *http.Request) string {
	return r.Header.Get(HeaderName)
}
