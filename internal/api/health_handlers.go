package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"store":      s.checkStore(ctx),
		"search":     s.checkSearchIndex(),
		"enrichment": s.checkEnrichmentQueue(ctx),
	}

	overall := "healthy"
	for _, c := range components {
		switch {
		case c.Status == "unhealthy":
			overall = "unhealthy"
		case c.Status == "degraded" && overall == "healthy":
			overall = "degraded"
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkStore verifies the collection can be read.
func (s *Server) checkStore(ctx context.Context) ComponentHealth {
	if s.services.Library == nil {
		return ComponentHealth{Status: "unhealthy", Message: "library not configured"}
	}

	start := time.Now()
	_, err := s.services.Library.GetAll(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{Status: "unhealthy", Latency: latency.String(), Message: "store read failed"}
	}
	return ComponentHealth{Status: "healthy", Latency: latency.String()}
}

// checkSearchIndex verifies the Bleve index is accessible.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.services.Search == nil {
		return ComponentHealth{Status: "degraded", Message: "search index not configured"}
	}

	start := time.Now()
	_, err := s.services.Search.DocumentCount()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{Status: "unhealthy", Latency: latency.String(), Message: "search index unreachable"}
	}
	return ComponentHealth{Status: "healthy", Latency: latency.String()}
}

// checkEnrichmentQueue reports the queue depth. Enrichment is optional, so
// problems here only degrade the service.
func (s *Server) checkEnrichmentQueue(ctx context.Context) ComponentHealth {
	if s.services.Enrichment == nil {
		return ComponentHealth{Status: "degraded", Message: "enrichment not configured"}
	}

	queue, err := s.services.Enrichment.Queue(ctx)
	if err != nil {
		return ComponentHealth{Status: "degraded", Message: "enrichment queue unreadable"}
	}
	if len(queue) == 0 {
		return ComponentHealth{Status: "healthy"}
	}
	return ComponentHealth{Status: "healthy", Message: strconv.Itoa(len(queue)) + " book(s) queued"}
}
