// Package activityclient is the Go SDK for the activity ingestion endpoint.
// It mirrors what the web frontend's activity logger does: page-visit timing,
// search/filter/sort/export/print telemetry, all delivered fire-and-forget.
//
// A Client is an explicit object constructed once at application start and
// passed to the components that emit events. Events are posted asynchronously
// with a bounded timeout; a failed delivery is logged and dropped — there is
// no retry and no queue. Activity telemetry is informational, and the action
// it annotates must never block on it.
package activityclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Options configures a Client. The zero value is usable for local testing
// against an unauthenticated endpoint.
type Options struct {
	// Token is the bearer token attached to every request. It can be
	// replaced later with SetToken as sessions rotate.
	Token string

	// HTTPClient overrides the default client. Its own timeout is ignored;
	// Timeout below bounds each delivery.
	HTTPClient *http.Client

	// Timeout bounds each delivery attempt. Defaults to 5 seconds.
	Timeout time.Duration

	// Logger receives delivery failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client emits activity events to the ingestion endpoint. All methods are safe
// for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger

	// sessionToken correlates every event from this client instance. It is
	// generated once at construction, like the per-tab token in the browser.
	sessionToken string

	mu          sync.Mutex
	token       string
	userID      string
	userName    string
	currentPage string
	pageStart   time.Time
	closed      bool

	// now is injected for tests; defaults to time.Now.
	now func() time.Time

	// wg tracks in-flight deliveries so Close can drain them.
	wg sync.WaitGroup
}

// New creates a Client posting to baseURL (e.g. "https://crm.example.pt").
func New(baseURL string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:      baseURL,
		httpClient:   httpClient,
		timeout:      timeout,
		logger:       logger,
		sessionToken: uuid.New().String(),
		token:        opts.Token,
		now:          time.Now,
	}
}

// SetToken replaces the bearer token, e.g. after a login or refresh.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// SetUser records the current principal. It emits a SESSION_START event so
// the log shows when this client began acting for the user.
func (c *Client) SetUser(userID, userName string) {
	c.mu.Lock()
	c.userID = userID
	c.userName = userName
	c.mu.Unlock()

	c.emit(event{
		Action:     "SESSION_START",
		EntityType: "session",
		EntityID:   c.sessionToken,
	})
}

// ClearUser forgets the current principal, closing out the current page
// first so its duration is attributed to the right user.
func (c *Client) ClearUser() {
	c.closeOutCurrentPage()

	c.mu.Lock()
	c.userID = ""
	c.userName = ""
	c.mu.Unlock()
}

// TrackPageView starts timing page. If another page was being viewed, a
// NAVIGATE event is emitted for it carrying the visit duration.
func (c *Client) TrackPageView(page string) {
	c.closeOutCurrentPage()

	c.mu.Lock()
	c.currentPage = page
	c.pageStart = c.now()
	c.mu.Unlock()
}

// closeOutCurrentPage emits the NAVIGATE event for the page being left, if
// any, and clears the current-page state.
func (c *Client) closeOutCurrentPage() {
	c.mu.Lock()
	page := c.currentPage
	start := c.pageStart
	c.currentPage = ""
	c.mu.Unlock()

	if page == "" {
		return
	}

	c.emit(event{
		Action:     "NAVIGATE",
		EntityType: "page",
		EntityID:   page,
		Metadata: map[string]interface{}{
			"durationMs": c.now().Sub(start).Milliseconds(),
		},
	})
}

// TrackSearch emits a SEARCH event with the term and result count.
func (c *Client) TrackSearch(entityType, term string, resultCount int) {
	c.emit(event{
		Action:     "SEARCH",
		EntityType: entityType,
		EntityID:   "search",
		Metadata: map[string]interface{}{
			"term":        term,
			"resultCount": resultCount,
		},
	})
}

// TrackFilter emits a FILTER event carrying the applied filter set.
func (c *Client) TrackFilter(entityType string, filters map[string]interface{}) {
	c.emit(event{
		Action:     "FILTER",
		EntityType: entityType,
		EntityID:   "filter",
		Metadata: map[string]interface{}{
			"filters": filters,
		},
	})
}

// TrackSort emits a SORT event for a column sort.
func (c *Client) TrackSort(entityType, field, direction string) {
	c.emit(event{
		Action:     "SORT",
		EntityType: entityType,
		EntityID:   "sort",
		Metadata: map[string]interface{}{
			"field":     field,
			"direction": direction,
		},
	})
}

// TrackExport emits an EXPORT event with the format and record count.
func (c *Client) TrackExport(entityType, format string, recordCount int) {
	c.emit(event{
		Action:     "EXPORT",
		EntityType: entityType,
		EntityID:   "export",
		Metadata: map[string]interface{}{
			"format":      format,
			"recordCount": recordCount,
		},
	})
}

// TrackDownload emits a DOWNLOAD event for a file download.
func (c *Client) TrackDownload(filename string) {
	c.emit(event{
		Action:     "DOWNLOAD",
		EntityType: "file",
		EntityID:   filename,
		EntityName: filename,
	})
}

// TrackPrint emits a PRINT event for the printed object.
func (c *Client) TrackPrint(entityType, entityID, entityName string) {
	c.emit(event{
		Action:     "PRINT",
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
	})
}

// TrackFormSubmit emits CREATE or UPDATE depending on mode ("create" maps to
// CREATE, anything else to UPDATE, matching the frontend's create/edit modes).
func (c *Client) TrackFormSubmit(entityType, entityID, entityName, mode string) {
	action := "UPDATE"
	if mode == "create" {
		action = "CREATE"
	}
	c.emit(event{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		Metadata: map[string]interface{}{
			"mode": mode,
		},
	})
}

// TrackClick emits an ACCESS event for a UI element interaction.
func (c *Client) TrackClick(button, context string) {
	c.emit(event{
		Action:     "ACCESS",
		EntityType: "ui",
		EntityID:   button,
		Metadata: map[string]interface{}{
			"button":  button,
			"context": context,
		},
	})
}

// Close closes out the current page, emits SESSION_END, and waits for
// in-flight deliveries to finish. The client must not be used afterwards.
func (c *Client) Close() {
	c.closeOutCurrentPage()

	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	hasUser := c.userID != ""
	c.mu.Unlock()

	if !alreadyClosed && hasUser {
		c.emit(event{
			Action:     "SESSION_END",
			EntityType: "session",
			EntityID:   c.sessionToken,
		})
	}

	c.wg.Wait()
}

// event is the ingestion payload.
type event struct {
	Action      string                 `json:"action"`
	EntityType  string                 `json:"entityType"`
	EntityID    string                 `json:"entityId"`
	EntityName  string                 `json:"entityName,omitempty"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// emit posts the event asynchronously. The session token is stamped into the
// metadata for correlation. Failures are logged and dropped.
func (c *Client) emit(e event) {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata["sessionToken"] = c.sessionToken

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("recovered panic delivering activity event", "panic", r)
			}
		}()
		if err := c.post(e, token); err != nil {
			c.logger.Warn("failed to deliver activity event",
				"action", e.Action,
				"entity_type", e.EntityType,
				"error", err)
		}
	}()
}

func (c *Client) post(e event, token string) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/system-activities", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := *c.httpClient
	client.Timeout = c.timeout

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ingestion endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
