package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/skobelev/warden/internal/api/models"
)

// registerSystemdRoutes exposes the external worker unit when one is
// configured. Without a systemd manager these routes do not exist.
func (s *Server) registerSystemdRoutes() {
	if s.options.SystemdManager == nil {
		return
	}

	unit := s.options.SystemdManager.Unit()

	huma.Register(s.api, huma.Operation{
		OperationID: "get-systemd-worker-status",
		Method:      http.MethodGet,
		Path:        "/api/systemd/worker/status",
		Summary:     "Worker Unit Status",
		Description: "Get the worker's systemd unit status",
		Tags:        []string{"systemd"},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.SystemdUnitStatusResponse, error) {
		status, err := s.options.SystemdManager.Status(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get unit status", err)
		}
		return &models.SystemdUnitStatusResponse{
			Body: models.SystemdUnitStatus{
				Unit:   unit,
				Status: status,
			},
		}, nil
	})

	actions := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{"start", s.options.SystemdManager.Start},
		{"stop", s.options.SystemdManager.Stop},
		{"restart", s.options.SystemdManager.Restart},
	}

	for _, action := range actions {
		action := action
		huma.Register(s.api, huma.Operation{
			OperationID: action.name + "-systemd-worker",
			Method:      http.MethodPost,
			Path:        "/api/systemd/worker/" + action.name,
			Summary:     "Worker Unit " + action.name,
			Description: "Run " + action.name + " on the worker's systemd unit",
			Tags:        []string{"systemd"},
			Security:    withAuth(),
		}, func(ctx context.Context, _ *struct{}) (*models.SystemdUnitActionResponse, error) {
			if err := action.run(ctx); err != nil {
				return nil, huma.Error500InternalServerError("Failed to "+action.name+" unit", err)
			}
			return &models.SystemdUnitActionResponse{
				Body: models.SystemdUnitAction{
					Unit:    unit,
					Action:  action.name,
					Success: true,
				},
			}, nil
		})
	}
}
