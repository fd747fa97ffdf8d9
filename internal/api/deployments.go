package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/skobelev/warden/internal/api/models"
	"github.com/skobelev/warden/internal/deploy"
)

func deploymentData(rec deploy.Record) models.DeploymentData {
	return models.DeploymentData{
		Timestamp:   rec.Timestamp.Format(time.RFC3339),
		Outcome:     rec.Outcome,
		PreviousRef: rec.PreviousRef,
		NewRef:      rec.NewRef,
		Error:       rec.Error,
		Duration:    rec.Duration,
	}
}

func (s *Server) registerDeployRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "deploy-worker",
		Method:      http.MethodPost,
		Path:        "/api/deploy",
		Summary:     "Deploy",
		Description: "Stop the worker, apply the latest update, restart, and verify. Rolls back on failure.",
		Tags:        []string{"deploy"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 502},
	}, func(ctx context.Context, _ *struct{}) (*models.DeployResponse, error) {
		rec, err := s.options.Deployer.Deploy(ctx)
		if err != nil {
			var derr *deploy.Error
			if errors.As(err, &derr) && derr.Code == deploy.ErrCodeInProgress {
				return nil, huma.Error409Conflict("A deployment is already in progress", err)
			}
			if rec != nil && rec.Outcome == deploy.OutcomeRolledBack {
				// The worker is back on the previous ref; report the
				// failure but include the record
				return nil, huma.Error502BadGateway("Deployment failed and was rolled back", err)
			}
			return nil, huma.Error502BadGateway("Deployment failed", err)
		}
		return &models.DeployResponse{Body: deploymentData(*rec)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rollback-worker",
		Method:      http.MethodPost,
		Path:        "/api/rollback",
		Summary:     "Rollback",
		Description: "Restore the artifact from before the most recent successful deployment and restart the worker",
		Tags:        []string{"deploy"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 502},
	}, func(ctx context.Context, _ *struct{}) (*models.DeployResponse, error) {
		rec, err := s.options.Deployer.Rollback(ctx)
		if err != nil {
			var derr *deploy.Error
			if errors.As(err, &derr) {
				switch derr.Code {
				case deploy.ErrCodeInProgress:
					return nil, huma.Error409Conflict("A deployment is already in progress", err)
				case deploy.ErrCodeNoBackup:
					return nil, huma.Error409Conflict("Nothing to roll back to", err)
				}
			}
			return nil, huma.Error502BadGateway("Rollback failed", err)
		}
		return &models.DeployResponse{Body: deploymentData(*rec)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-deployments",
		Method:      http.MethodGet,
		Path:        "/api/deployments",
		Summary:     "Deployment History",
		Description: "List recent deployment attempts, newest first",
		Tags:        []string{"deploy"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"20" minimum:"1" maximum:"500" doc:"Maximum records to return"`
	}) (*models.DeploymentsResponse, error) {
		records, err := s.options.Deployer.History(input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to read deployment history", err)
		}
		data := models.DeploymentsData{
			Deployments: make([]models.DeploymentData, 0, len(records)),
		}
		for _, rec := range records {
			data.Deployments = append(data.Deployments, deploymentData(rec))
		}
		data.Count = len(data.Deployments)
		return &models.DeploymentsResponse{Body: data}, nil
	})
}
