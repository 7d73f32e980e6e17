package domain

import "time"

// TimeLayout is the fixed-width UTC layout used for every stored timestamp,
// so that lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// DateLayout is the accepted form of Task.DueDate.
const DateLayout = "2006-01-02"

// DefaultProjectColor is applied when a project is created without a color.
const DefaultProjectColor = "#007bff"

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

// Priorities lists valid task priorities, highest first.
var Priorities = []string{PriorityHigh, PriorityMedium, PriorityLow}

// Statuses lists valid task statuses in workflow order. Any status can move
// to any other.
var Statuses = []string{StatusPending, StatusInProgress, StatusCompleted}

func ValidPriority(p string) bool { return contains(Priorities, p) }

func ValidStatus(s string) bool { return contains(Statuses, s) }

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

type Project struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Description         string `json:"description"`
	MarkdownDescription string `json:"markdownDescription"`
	Color               string `json:"color"`
	CreatedAt           string `json:"createdAt"`
	UpdatedAt           string `json:"updatedAt"`
}

type Task struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	DueDate     string  `json:"dueDate"`
	ProjectID   *string `json:"projectId"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// TaskStats counts a project's tasks per status.
type TaskStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in-progress"`
	Completed  int `json:"completed"`
}
