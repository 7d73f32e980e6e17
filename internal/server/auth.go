package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskboard/internal/config"
	"taskboard/internal/engine/auth"
)

// registerAuth exposes the shared-password check used by the browser client.
// No session or token is issued; a success only tells the client to unlock.
func registerAuth(api huma.API, gate auth.Gate) {
	huma.Register(api, huma.Operation{
		OperationID: "check-password",
		Method:      http.MethodPost,
		Path:        "/auth",
		Summary:     "Check the access password",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body AuthRequest `json:"body"`
	}) (*struct {
		Body SuccessResponse `json:"body"`
	}, error) {
		if err := gate.Check(input.Body.Password); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SuccessResponse `json:"body"`
		}{Body: SuccessResponse{Success: true}}, nil
	})
}

func registerConfig(api huma.API, settings *config.Config) {
	huma.Register(api, huma.Operation{
		OperationID: "get-config",
		Method:      http.MethodGet,
		Path:        "/config",
		Summary:     "Public client configuration",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body PublicConfigResponse `json:"body"`
	}, error) {
		var out PublicConfigResponse
		out.Security.Enabled = settings.Security.Enabled
		out.Security.SessionDuration = settings.Security.SessionDuration
		out.App.Name = settings.App.Name
		out.App.Version = settings.App.Version
		out.App.Language = settings.App.Language
		return &struct {
			Body PublicConfigResponse `json:"body"`
		}{Body: out}, nil
	})
}
