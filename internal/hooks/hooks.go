// Package hooks runs commands and webhooks when a mirror run starts, finishes or fails.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"time"

	"github.com/kilimcininkoroglu/stickermirror/internal/version"
)

// Event represents a run lifecycle event
type Event string

const (
	EventStart    Event = "start"    // Run started, tasks collected
	EventComplete Event = "complete" // Run finished and archive written
	EventError    Event = "error"    // Run aborted by a fatal error
)

// Payload describes the run an event belongs to
type Payload struct {
	Event       Event     `json:"event"`
	RunID       string    `json:"run_id"`
	OutputDir   string    `json:"output_dir"`
	ArchivePath string    `json:"archive_path,omitempty"`
	Digest      string    `json:"archive_blake3,omitempty"`
	Manifests   int       `json:"manifests"`
	Total       int       `json:"total"`
	Fetched     int       `json:"fetched"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Bytes       int64     `json:"bytes"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Duration    float64   `json:"duration_seconds,omitempty"`
}

// Hook is the interface for all hook types
type Hook interface {
	Execute(ctx context.Context, payload *Payload) error
	Name() string
}

// CommandHook executes a shell command on events
type CommandHook struct {
	Command string
	Events  []Event
	Timeout time.Duration
}

// NewCommandHook creates a new command hook
func NewCommandHook(command string, events ...Event) *CommandHook {
	if len(events) == 0 {
		events = []Event{EventComplete, EventError}
	}
	return &CommandHook{
		Command: command,
		Events:  events,
		Timeout: 30 * time.Second,
	}
}

// Name returns the hook name
func (h *CommandHook) Name() string {
	return fmt.Sprintf("command:%s", h.Command)
}

// Execute runs the command with the payload exported as STICKERMIRROR_* variables
func (h *CommandHook) Execute(ctx context.Context, payload *Payload) error {
	if !slices.Contains(h.Events, payload.Event) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", h.Command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", h.Command)
	}

	cmd.Env = append(os.Environ(), buildEnv(payload)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hook command failed: %w (stderr: %s)", err, stderr.String())
	}

	return nil
}

func buildEnv(payload *Payload) []string {
	return []string{
		fmt.Sprintf("STICKERMIRROR_EVENT=%s", payload.Event),
		fmt.Sprintf("STICKERMIRROR_RUN_ID=%s", payload.RunID),
		fmt.Sprintf("STICKERMIRROR_OUTPUT=%s", payload.OutputDir),
		fmt.Sprintf("STICKERMIRROR_ARCHIVE=%s", payload.ArchivePath),
		fmt.Sprintf("STICKERMIRROR_DIGEST=%s", payload.Digest),
		fmt.Sprintf("STICKERMIRROR_MANIFESTS=%d", payload.Manifests),
		fmt.Sprintf("STICKERMIRROR_TOTAL=%d", payload.Total),
		fmt.Sprintf("STICKERMIRROR_FETCHED=%d", payload.Fetched),
		fmt.Sprintf("STICKERMIRROR_SKIPPED=%d", payload.Skipped),
		fmt.Sprintf("STICKERMIRROR_FAILED=%d", payload.Failed),
		fmt.Sprintf("STICKERMIRROR_BYTES=%d", payload.Bytes),
		fmt.Sprintf("STICKERMIRROR_ERROR=%s", payload.Error),
		fmt.Sprintf("STICKERMIRROR_DURATION=%.2f", payload.Duration),
	}
}

// WebhookHook sends HTTP POST requests on events
type WebhookHook struct {
	URL     string
	Events  []Event
	Headers map[string]string
	Timeout time.Duration
	client  *http.Client
}

// NewWebhookHook creates a new webhook hook
func NewWebhookHook(url string, events ...Event) *WebhookHook {
	if len(events) == 0 {
		events = []Event{EventComplete, EventError}
	}
	return &WebhookHook{
		URL:     url,
		Events:  events,
		Headers: make(map[string]string),
		Timeout: 10 * time.Second,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithHeader adds a header to the webhook request
func (h *WebhookHook) WithHeader(key, value string) *WebhookHook {
	h.Headers[key] = value
	return h
}

// Name returns the hook name
func (h *WebhookHook) Name() string {
	return fmt.Sprintf("webhook:%s", h.URL)
}

// Execute posts the payload as JSON
func (h *WebhookHook) Execute(ctx context.Context, payload *Payload) error {
	if !slices.Contains(h.Events, payload.Event) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Manager manages multiple hooks
type Manager struct {
	hooks []Hook
}

// NewManager creates a new hook manager
func NewManager() *Manager {
	return &Manager{}
}

// Add adds a hook to the manager
func (m *Manager) Add(hook Hook) {
	m.hooks = append(m.hooks, hook)
}

// AddCommand adds a command hook
func (m *Manager) AddCommand(command string, events ...Event) {
	m.Add(NewCommandHook(command, events...))
}

// AddWebhook adds a webhook hook
func (m *Manager) AddWebhook(url string, events ...Event) {
	m.Add(NewWebhookHook(url, events...))
}

// Execute runs every hook in order and joins their errors.
// A failing hook does not stop the ones after it.
func (m *Manager) Execute(ctx context.Context, payload *Payload) error {
	if m == nil {
		return nil
	}

	var errs []error
	for _, hook := range m.hooks {
		if err := hook.Execute(ctx, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of registered hooks
func (m *Manager) Count() int {
	if m == nil {
		return 0
	}
	return len(m.hooks)
}

// NewPayload creates a payload for an event, stamped with the current time
func NewPayload(event Event, runID, outputDir string) *Payload {
	return &Payload{
		Event:     event,
		RunID:     runID,
		OutputDir: outputDir,
		Timestamp: time.Now(),
	}
}

// WithCounts adds task counters to the payload
func (p *Payload) WithCounts(total, fetched, skipped, failed int, bytes int64) *Payload {
	p.Total = total
	p.Fetched = fetched
	p.Skipped = skipped
	p.Failed = failed
	p.Bytes = bytes
	return p
}

// WithArchive adds archive details to the payload
func (p *Payload) WithArchive(path, digest string) *Payload {
	p.ArchivePath = path
	p.Digest = digest
	return p
}

// WithError adds error information to the payload
func (p *Payload) WithError(err error) *Payload {
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

// WithDuration adds duration information to the payload
func (p *Payload) WithDuration(d time.Duration) *Payload {
	p.Duration = d.Seconds()
	return p
}
