package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskboard/internal/engine"
)

func registerTaskWebhook(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "notify-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/webhook",
		Summary:     "Push a task summary to a webhook",
		Description: "Makes exactly one outbound POST. Delivery failures are reported with code webhook_failed.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body NotifyTaskRequest `json:"body"`
	}) (*struct {
		Body SuccessResponse `json:"body"`
	}, error) {
		if err := e.NotifyTask(ctx, input.ID, input.Body.WebhookURL); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SuccessResponse `json:"body"`
		}{Body: SuccessResponse{Success: true, Message: "task pushed"}}, nil
	})
}
