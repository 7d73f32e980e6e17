package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"taskboard/internal/domain"
)

const (
	DefaultTimeout = 10 * time.Second
	maxErrorBody   = 4096
	displayLayout  = "2006-01-02 15:04:05 UTC"
)

// DeliveryError is returned when the webhook endpoint could not be reached or
// answered with a non-2xx status.
type DeliveryError struct {
	URL    string
	Status int
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("webhook delivery failed: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("webhook delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Webhook posts a markdown summary of a task to a chat-style webhook.
type Webhook struct {
	Client  *http.Client
	Timeout time.Duration
	Logger  *log.Logger
}

type envelope struct {
	MsgType  string   `json:"msgtype"`
	Markdown markdown `json:"markdown"`
}

type markdown struct {
	Content string `json:"content"`
}

var statusLabels = map[string]string{
	domain.StatusPending:    "⏳ Pending",
	domain.StatusInProgress: "🔄 In progress",
	domain.StatusCompleted:  "✅ Completed",
}

var priorityLabels = map[string]string{
	domain.PriorityHigh:   "🔴 High",
	domain.PriorityMedium: "🟡 Medium",
	domain.PriorityLow:    "🟢 Low",
}

func (w Webhook) logger() *log.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return log.Default()
}

func (w Webhook) client() *http.Client {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if w.Client != nil {
		if w.Client.Timeout == 0 {
			c := *w.Client
			c.Timeout = timeout
			return &c
		}
		return w.Client
	}
	return &http.Client{Timeout: timeout}
}

// Notify performs exactly one POST.
func (w Webhook) Notify(ctx context.Context, url string, t domain.Task) error {
	data, err := json.Marshal(envelope{MsgType: "markdown", Markdown: markdown{Content: Summary(t)}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return &DeliveryError{URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := w.client().Do(req)
	if err != nil {
		w.logger().Printf("webhook: deliver task %s to %s failed: %v", t.ID, url, err)
		return &DeliveryError{URL: url, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		derr := &DeliveryError{URL: url, Status: res.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
		w.logger().Printf("webhook: deliver task %s to %s: %v", t.ID, url, derr)
		return derr
	}
	return nil
}

// Summary renders the markdown body sent for a task.
func Summary(t domain.Task) string {
	var b strings.Builder
	b.WriteString("## 📋 Task notification\n\n")
	fmt.Fprintf(&b, "**Title:** %s\n\n", t.Title)
	fmt.Fprintf(&b, "**Description:** %s\n\n", orDefault(t.Description, "none"))
	fmt.Fprintf(&b, "**Status:** %s\n\n", label(statusLabels, t.Status))
	fmt.Fprintf(&b, "**Priority:** %s\n\n", label(priorityLabels, t.Priority))
	fmt.Fprintf(&b, "**Due date:** %s\n\n", orDefault(t.DueDate, "not set"))
	fmt.Fprintf(&b, "**Created:** %s\n\n", displayTime(t.CreatedAt))
	if t.UpdatedAt != "" && t.UpdatedAt != t.CreatedAt {
		fmt.Fprintf(&b, "**Updated:** %s\n\n", displayTime(t.UpdatedAt))
	}
	b.WriteString("---\n*Sent from Taskboard*")
	return b.String()
}

func label(labels map[string]string, key string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return key
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func displayTime(ts string) string {
	parsed, err := domain.ParseTime(ts)
	if err != nil {
		return ts
	}
	return parsed.Format(displayLayout)
}
