// shipper.go handles forwarding persisted activity entries to external
// destinations (file, webhook). The database remains the source of truth;
// shipping exists so activity records can be routed to a SIEM or log
// aggregator independently of the application's own logging pipeline.
// Shipping is always best-effort — a failed ship never fails the write.
package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nexocrm/nexo-backend/internal/db/models"
)

// Shipper forwards one activity entry to a destination.
type Shipper interface {
	Ship(ctx context.Context, entry *models.SystemActivity) error
	Close() error
}

// ShipperConfig selects and configures one destination.
type ShipperConfig struct {
	Enabled bool
	Type    string // "webhook" or "file"
	Webhook *WebhookConfig
	File    *FileConfig
}

// WebhookConfig configures an HTTP destination. When BatchSize > 0 entries
// are accumulated and flushed as a JSON array either when the batch fills or
// on every FlushInterval tick.
type WebhookConfig struct {
	URL           string
	Headers       map[string]string
	Timeout       time.Duration
	BatchSize     int
	FlushInterval time.Duration
}

// FileConfig configures an append-only JSON-lines file destination with
// size-based rotation.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// NewShipper builds a MultiShipper from the enabled configs. Returns nil when
// nothing is enabled so callers can pass the result straight to NewRecorder.
func NewShipper(configs []ShipperConfig) (Shipper, error) {
	shippers := make([]Shipper, 0, len(configs))

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		var (
			shipper Shipper
			err     error
		)
		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				return nil, fmt.Errorf("webhook config is required for webhook shipper")
			}
			shipper, err = newWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, fmt.Errorf("file config is required for file shipper")
			}
			shipper, err = newFileShipper(cfg.File)
		default:
			return nil, fmt.Errorf("unknown shipper type: %s", cfg.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create %s shipper: %w", cfg.Type, err)
		}

		shippers = append(shippers, shipper)
	}

	if len(shippers) == 0 {
		return nil, nil
	}
	return &multiShipper{shippers: shippers}, nil
}

// multiShipper fans one entry out to every destination, returning the last
// error but always attempting all of them.
type multiShipper struct {
	mu       sync.RWMutex
	shippers []Shipper
}

func (ms *multiShipper) Ship(ctx context.Context, entry *models.SystemActivity) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Ship(ctx, entry); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (ms *multiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// webhookShipper POSTs entries to an HTTP endpoint, optionally batched.
type webhookShipper struct {
	cfg       *WebhookConfig
	client    *http.Client
	batchCh   chan *models.SystemActivity
	batch     []*models.SystemActivity
	batchMu   sync.Mutex
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newWebhookShipper(cfg *WebhookConfig) (*webhookShipper, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ws := &webhookShipper{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		batchCh: make(chan *models.SystemActivity, 1000),
		closeCh: make(chan struct{}),
	}

	if cfg.BatchSize > 0 {
		go ws.processBatches()
	}

	return ws, nil
}

func (ws *webhookShipper) processBatches() {
	flushInterval := ws.cfg.FlushInterval
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-ws.batchCh:
			ws.batchMu.Lock()
			ws.batch = append(ws.batch, entry)
			if len(ws.batch) >= ws.cfg.BatchSize {
				ws.flushBatch()
			}
			ws.batchMu.Unlock()
		case <-ticker.C:
			ws.batchMu.Lock()
			if len(ws.batch) > 0 {
				ws.flushBatch()
			}
			ws.batchMu.Unlock()
		case <-ws.closeCh:
			ws.batchMu.Lock()
			if len(ws.batch) > 0 {
				ws.flushBatch()
			}
			ws.batchMu.Unlock()
			return
		}
	}
}

// flushBatch sends the accumulated batch. Caller holds batchMu.
func (ws *webhookShipper) flushBatch() {
	data, err := json.Marshal(ws.batch)
	if err != nil {
		ws.batch = ws.batch[:0]
		return
	}
	ws.batch = ws.batch[:0]

	timeout := ws.cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_ = ws.sendRequest(ctx, data)
}

func (ws *webhookShipper) Ship(ctx context.Context, entry *models.SystemActivity) error {
	if ws.cfg.BatchSize > 0 {
		select {
		case ws.batchCh <- entry:
			return nil
		default:
			// Batch channel full; fall through to a direct send.
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal activity entry: %w", err)
	}

	return ws.sendRequest(ctx, data)
}

func (ws *webhookShipper) sendRequest(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func (ws *webhookShipper) Close() error {
	ws.closeOnce.Do(func() {
		close(ws.closeCh)
	})
	return nil
}

// fileShipper appends entries as JSON lines with size-based rotation.
type fileShipper struct {
	cfg  *FileConfig
	mu   sync.Mutex
	file *os.File
}

func newFileShipper(cfg *FileConfig) (*fileShipper, error) {
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log file: %w", err)
	}
	return &fileShipper{cfg: cfg, file: file}, nil
}

func (fs *fileShipper) Ship(_ context.Context, entry *models.SystemActivity) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg.MaxSizeMB > 0 {
		if info, err := fs.file.Stat(); err == nil && info.Size() > int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				return fmt.Errorf("failed to rotate activity log: %w", err)
			}
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal activity entry: %w", err)
	}

	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write activity entry: %w", err)
	}

	return nil
}

// rotate shifts path → path.1 → path.2 … keeping MaxBackups files.
func (fs *fileShipper) rotate() error {
	if err := fs.file.Close(); err != nil {
		return err
	}

	for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", fs.cfg.Path, i), fmt.Sprintf("%s.%d", fs.cfg.Path, i+1))
	}
	_ = os.Rename(fs.cfg.Path, fs.cfg.Path+".1")
	if fs.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", fs.cfg.Path, fs.cfg.MaxBackups+1))
	}

	file, err := os.OpenFile(fs.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	fs.file = file
	return nil
}

func (fs *fileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
