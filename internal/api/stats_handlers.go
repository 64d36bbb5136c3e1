package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/shelfwise/internal/stats"
)

func (s *Server) registerStatsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getDashboard",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Get dashboard statistics",
		Description: "Returns chart-ready aggregates recomputed from the whole collection",
		Tags:        []string{"Stats"},
	}, s.handleGetDashboard)
}

// DashboardOutput wraps the dashboard for Huma.
type DashboardOutput struct {
	Body *stats.Dashboard
}

func (s *Server) handleGetDashboard(ctx context.Context, _ *struct{}) (*DashboardOutput, error) {
	d, err := s.services.Stats.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardOutput{Body: d}, nil
}
