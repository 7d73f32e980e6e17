package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/repo"
)

// Notifier delivers a task snapshot to an outbound endpoint.
type Notifier interface {
	Notify(ctx context.Context, url string, t domain.Task) error
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Notifier Notifier
	Gate     auth.Gate
	Now      func() time.Time
	NewID    func() string
}

func New(db *sql.DB, gate auth.Gate, notifier Notifier) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Notifier: notifier,
		Gate:     gate,
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

// touch returns the timestamp for a mutation of a row last written at prev.
// The result is always strictly after prev.
func (e Engine) touch(prev string) string {
	next := e.now().UTC().Truncate(time.Millisecond)
	if last, err := domain.ParseTime(prev); err == nil && !next.After(last) {
		next = last.Add(time.Millisecond)
	}
	return domain.FormatTime(next)
}

// TaskCreateOptions are parameters for creating a task. Empty strings take
// the defaults.
type TaskCreateOptions struct {
	Title       string
	Description string
	Priority    string
	Status      string
	DueDate     string
	ProjectID   string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Task{}, ValidationError{Field: "title", Reason: "is required"}
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if opts.Status == "" {
		opts.Status = domain.StatusPending
	}
	now := domain.FormatTime(e.now())
	t := domain.Task{
		ID:          e.newID(),
		Title:       opts.Title,
		Description: opts.Description,
		Priority:    opts.Priority,
		Status:      opts.Status,
		DueDate:     opts.DueDate,
		ProjectID:   optionalString(opts.ProjectID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.validateTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Repo.InsertTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TaskUpdateOptions carries a partial update. A nil field was not supplied
// and keeps its stored value. SetProject set to "" unassigns the task.
type TaskUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	Priority    *string
	Status      *string
	DueDate     *string
	SetProject  *string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	if opts.Title != nil {
		if strings.TrimSpace(*opts.Title) == "" {
			return t, ValidationError{Field: "title", Reason: "must not be empty"}
		}
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Priority != nil {
		t.Priority = *opts.Priority
	}
	if opts.Status != nil {
		t.Status = *opts.Status
	}
	if opts.DueDate != nil {
		t.DueDate = *opts.DueDate
	}
	if opts.SetProject != nil {
		t.ProjectID = optionalString(*opts.SetProject)
	}
	if err := e.validateTask(ctx, t); err != nil {
		return t, err
	}
	t.UpdatedAt = e.touch(t.UpdatedAt)
	if err := e.Repo.UpdateTask(ctx, t); err != nil {
		return t, err
	}
	return e.Repo.GetTask(ctx, t.ID)
}

func (e Engine) DeleteTask(ctx context.Context, id string) error {
	return e.Repo.DeleteTask(ctx, id)
}

func (e Engine) validateTask(ctx context.Context, t domain.Task) error {
	if !domain.ValidPriority(t.Priority) {
		return ValidationError{Field: "priority", Reason: fmt.Sprintf("must be one of %s", strings.Join(domain.Priorities, ", "))}
	}
	if !domain.ValidStatus(t.Status) {
		return ValidationError{Field: "status", Reason: fmt.Sprintf("must be one of %s", strings.Join(domain.Statuses, ", "))}
	}
	if t.DueDate != "" {
		if _, err := time.Parse(domain.DateLayout, t.DueDate); err != nil {
			return ValidationError{Field: "dueDate", Reason: "must be a YYYY-MM-DD date"}
		}
	}
	if t.ProjectID != nil {
		if _, err := e.Repo.GetProject(ctx, *t.ProjectID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ValidationError{Field: "projectId", Reason: fmt.Sprintf("references unknown project %s", *t.ProjectID)}
			}
			return err
		}
	}
	return nil
}

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	Name                string
	Description         string
	MarkdownDescription string
	Color               string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Project{}, ValidationError{Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(opts.Color) == "" {
		opts.Color = domain.DefaultProjectColor
	}
	now := domain.FormatTime(e.now())
	p := domain.Project{
		ID:                  e.newID(),
		Name:                opts.Name,
		Description:         opts.Description,
		MarkdownDescription: opts.MarkdownDescription,
		Color:               opts.Color,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := e.Repo.InsertProject(ctx, p); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ProjectUpdateOptions carries a partial update; nil fields are left as stored.
type ProjectUpdateOptions struct {
	ID                  string
	Name                *string
	Description         *string
	MarkdownDescription *string
	Color               *string
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, opts.ID)
	if err != nil {
		return p, err
	}
	if opts.Name != nil {
		if strings.TrimSpace(*opts.Name) == "" {
			return p, ValidationError{Field: "name", Reason: "must not be empty"}
		}
		p.Name = *opts.Name
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	if opts.MarkdownDescription != nil {
		p.MarkdownDescription = *opts.MarkdownDescription
	}
	if opts.Color != nil {
		p.Color = *opts.Color
		if strings.TrimSpace(p.Color) == "" {
			p.Color = domain.DefaultProjectColor
		}
	}
	p.UpdatedAt = e.touch(p.UpdatedAt)
	if err := e.Repo.UpdateProject(ctx, p); err != nil {
		return p, err
	}
	return e.Repo.GetProject(ctx, p.ID)
}

// UpdateProjectDescription replaces only the Markdown description.
func (e Engine) UpdateProjectDescription(ctx context.Context, id, markdown string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return p, err
	}
	if err := e.Repo.UpdateProjectDescription(ctx, id, markdown, e.touch(p.UpdatedAt)); err != nil {
		return p, err
	}
	return e.Repo.GetProject(ctx, id)
}

// DeleteProject fails with repo.ErrConflict while any task references the project.
func (e Engine) DeleteProject(ctx context.Context, id string) error {
	return e.Repo.DeleteProject(ctx, id)
}

func (e Engine) ProjectStats(ctx context.Context, id string) (domain.TaskStats, error) {
	return e.Repo.ProjectTaskStats(ctx, id)
}

// NotifyTask sends one webhook call carrying the task. Failures are returned
// as is and never retried.
func (e Engine) NotifyTask(ctx context.Context, id, url string) error {
	if strings.TrimSpace(url) == "" {
		return ValidationError{Field: "webhookUrl", Reason: "is required"}
	}
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if e.Notifier == nil {
		return errors.New("notifier not configured")
	}
	return e.Notifier.Notify(ctx, url, t)
}

// SampleTask returns the task written into an empty store on first start.
func (e Engine) SampleTask() domain.Task {
	now := domain.FormatTime(e.now())
	return domain.Task{
		ID:          e.newID(),
		Title:       "Sample task",
		Description: "An example task showing what the tracker can do",
		Priority:    domain.PriorityMedium,
		Status:      domain.StatusPending,
		DueDate:     e.now().AddDate(0, 0, 7).Format(domain.DateLayout),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
