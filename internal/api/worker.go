package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/skobelev/warden/internal/api/models"
	"github.com/skobelev/warden/internal/supervisor"
)

func workerStatusData(st supervisor.Status) models.WorkerStatusData {
	data := models.WorkerStatusData{
		State:        string(st.State),
		Command:      st.Command,
		PID:          st.PID,
		RestartCount: st.RestartCount,
		LastExitCode: st.LastExitCode,
		LastError:    st.LastError,
	}
	if st.State.Alive() {
		data.UptimeSecs = st.Uptime.Seconds()
		data.StartedAt = st.StartedAt.UTC().Format(time.RFC3339)
	}
	if !st.NextRestart.IsZero() {
		data.NextRestart = st.NextRestart.UTC().Format(time.RFC3339)
	}
	return data
}

func (s *Server) registerWorkerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-worker-status",
		Method:      http.MethodGet,
		Path:        "/api/worker",
		Summary:     "Worker Status",
		Description: "Get the supervised worker's current state",
		Tags:        []string{"worker"},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.WorkerStatusResponse, error) {
		return &models.WorkerStatusResponse{
			Body: workerStatusData(s.options.Worker.Report()),
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-worker",
		Method:      http.MethodPost,
		Path:        "/api/worker/start",
		Summary:     "Start Worker",
		Description: "Launch the worker process",
		Tags:        []string{"worker"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, _ *struct{}) (*models.WorkerActionResponse, error) {
		if err := s.options.Worker.Start(); err != nil {
			if errors.Is(err, supervisor.ErrAlreadyRunning) {
				return nil, huma.Error409Conflict("Worker is already running", err)
			}
			return nil, huma.Error500InternalServerError("Failed to start worker", err)
		}
		return &models.WorkerActionResponse{
			Body: models.WorkerActionData{
				Action: "start",
				State:  string(s.options.Worker.Report().State),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-worker",
		Method:      http.MethodPost,
		Path:        "/api/worker/stop",
		Summary:     "Stop Worker",
		Description: "Stop the worker process gracefully, escalating to SIGKILL after the stop timeout",
		Tags:        []string{"worker"},
		Security:    withAuth(),
		Errors:      []int{401, 504},
	}, func(ctx context.Context, input *struct {
		Timeout int `query:"timeout" minimum:"0" doc:"Graceful stop timeout in seconds, overriding the configured value"`
	}) (*models.WorkerActionResponse, error) {
		if err := s.options.Worker.StopWithTimeout(time.Duration(input.Timeout) * time.Second); err != nil {
			if errors.Is(err, supervisor.ErrStopTimeout) {
				return nil, huma.Error504GatewayTimeout("Worker did not exit in time", err)
			}
			return nil, huma.Error500InternalServerError("Failed to stop worker", err)
		}
		return &models.WorkerActionResponse{
			Body: models.WorkerActionData{
				Action: "stop",
				State:  string(s.options.Worker.Report().State),
			},
		}, nil
	})
}
