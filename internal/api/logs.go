package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/skobelev/warden/internal/api/models"
	"github.com/skobelev/warden/internal/logging"
)

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Logs",
		Description: "Read recent log entries from the in-memory ring buffer",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct {
		Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Maximum entries to return"`
		Module string `query:"module" doc:"Only entries from this module"`
	}) (*models.LogsResponse, error) {
		data := models.LogsData{Entries: []models.LogEntryData{}}

		buffer := logging.GetBuffer()
		if buffer == nil {
			return &models.LogsResponse{Body: data}, nil
		}

		entries := buffer.ReadAll()
		for _, entry := range entries {
			if input.Module != "" && entry.Module != input.Module {
				continue
			}
			data.Entries = append(data.Entries, models.LogEntryData{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		}
		if len(data.Entries) > input.Limit {
			data.Entries = data.Entries[len(data.Entries)-input.Limit:]
		}
		data.Count = len(data.Entries)
		return &models.LogsResponse{Body: data}, nil
	})
}
