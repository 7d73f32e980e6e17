package server

import (
	"taskboard/internal/domain"
)

// Request payloads

type CreateTaskRequest struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	Title       string  `json:"title" doc:"Task title; must not be blank"`
	Description string  `json:"description,omitempty"`
	Priority    string  `json:"priority,omitempty" doc:"low, medium or high; defaults to medium"`
	Status      string  `json:"status,omitempty" doc:"pending, in-progress or completed; defaults to pending"`
	DueDate     string  `json:"dueDate,omitempty" doc:"YYYY-MM-DD"`
	ProjectID   *string `json:"projectId,omitempty" nullable:"true"`
}

type UpdateTaskRequest struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty" nullable:"true" doc:"null or empty string clears the description"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	Status      *string `json:"status,omitempty" enum:"pending,in-progress,completed"`
	DueDate     *string `json:"dueDate,omitempty" nullable:"true" doc:"YYYY-MM-DD; null or empty string clears the due date"`
	ProjectID   *string `json:"projectId,omitempty" nullable:"true" doc:"null or empty string unassigns the task"`
}

type NotifyTaskRequest struct {
	WebhookURL string `json:"webhookUrl,omitempty" doc:"Endpoint receiving the markdown message"`
}

type CreateProjectRequest struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	Name                string `json:"name"`
	Description         string `json:"description,omitempty"`
	MarkdownDescription string `json:"markdownDescription,omitempty"`
	Color               string `json:"color,omitempty" doc:"CSS color; defaults to #007bff"`
}

type UpdateProjectRequest struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	Name                *string `json:"name,omitempty"`
	Description         *string `json:"description,omitempty"`
	MarkdownDescription *string `json:"markdownDescription,omitempty"`
	Color               *string `json:"color,omitempty"`
}

type UpdateProjectDescriptionRequest struct {
	MarkdownDescription string `json:"markdownDescription,omitempty" doc:"Absent or empty clears the description"`
}

type AuthRequest struct {
	Password string `json:"password,omitempty"`
}

// Response payloads

type TaskResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	DueDate     string  `json:"dueDate"`
	ProjectID   *string `json:"projectId" nullable:"true"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

type ProjectResponse struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Description         string `json:"description"`
	MarkdownDescription string `json:"markdownDescription"`
	Color               string `json:"color"`
	CreatedAt           string `json:"createdAt"`
	UpdatedAt           string `json:"updatedAt"`
}

type StatsResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in-progress"`
	Completed  int `json:"completed"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type PublicConfigResponse struct {
	Security struct {
		Enabled         bool `json:"enabled"`
		SessionDuration int  `json:"sessionDuration" doc:"Hours"`
	} `json:"security"`
	App struct {
		Name     string `json:"name"`
		Version  string `json:"version"`
		Language string `json:"language"`
	} `json:"app"`
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		DueDate:     t.DueDate,
		ProjectID:   t.ProjectID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:                  p.ID,
		Name:                p.Name,
		Description:         p.Description,
		MarkdownDescription: p.MarkdownDescription,
		Color:               p.Color,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectResponse(p))
	}
	return out
}

func statsResponse(s domain.TaskStats) StatsResponse {
	return StatsResponse{
		Total:      s.Total,
		Pending:    s.Pending,
		InProgress: s.InProgress,
		Completed:  s.Completed,
	}
}
