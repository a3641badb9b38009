package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "github.com/IDGHIM/TaskFlow/api"
	requestEventName   = "taskflow.request"
	requestEventDomain = "taskflow.api"
	observabilityMsg   = "observability.event"
)

// requestMetrics records one API request as a span and a structured log
// entry carrying the same attributes.
type requestMetrics struct {
	logger     *log.Logger
	route      string
	span       trace.Span
	start      time.Time
	owner      string
	counters   map[string]int
	errorStage string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, route string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "HTTP "+route, trace.WithSpanKind(trace.SpanKindServer))
	return &requestMetrics{
		logger:   logger,
		route:    route,
		span:     span,
		start:    time.Now(),
		counters: make(map[string]int),
	}, ctx
}

func (m *requestMetrics) SetOwner(owner string) { m.owner = owner }

// Set records a counter attribute, exported as taskflow.<name>.
func (m *requestMetrics) Set(name string, v int) {
	if v < 0 {
		v = 0
	}
	m.counters[name] = v
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log ends the span and emits the observability event.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	severity, number := severityForStatus(status, err)
	totalMs := durationToMillis(time.Since(m.start))

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("taskflow.total_ms", totalMs),
	}
	fields := map[string]any{
		"http.route":        m.route,
		"http.status_code":  status,
		"taskflow.total_ms": totalMs,
	}
	if m.owner != "" {
		attrs = append(attrs, attribute.String("taskflow.owner", m.owner))
		fields["taskflow.owner"] = m.owner
	}
	for name, v := range m.counters {
		attrs = append(attrs, attribute.Int("taskflow."+name, v))
		fields["taskflow."+name] = v
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("taskflow.error_stage", m.errorStage))
		fields["taskflow.error_stage"] = m.errorStage
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
		fields["error.message"] = err.Error()
	}

	m.span.SetAttributes(attrs...)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", requestEventName),
		attribute.String("event.domain", requestEventDomain),
		attribute.String("severity_text", severity),
	}, attrs...)
	m.span.AddEvent(observabilityMsg, trace.WithAttributes(eventAttrs...))
	if severity == "ERROR" {
		desc := http.StatusText(status)
		if err != nil {
			desc = err.Error()
		}
		m.span.SetStatus(codes.Error, desc)
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	traceID := m.span.SpanContext().TraceID()
	m.span.End()

	if m.logger == nil {
		return
	}
	entry := m.logger.WithFields(log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"severity_text":   severity,
		"severity_number": number,
		"attributes":      fields,
	})
	if traceID.IsValid() {
		entry = entry.WithField("trace_id", traceID.String())
	}
	switch severity {
	case "ERROR":
		entry.Error(observabilityMsg)
	case "WARN":
		entry.Warn(observabilityMsg)
	default:
		entry.Info(observabilityMsg)
	}
}

// severityForStatus follows the OpenTelemetry log severity numbers.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= 500, status == 0 && err != nil:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
