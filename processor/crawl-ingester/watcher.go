package crawlingester

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventChannelBuffer is the size of the inbox event channel.
const eventChannelBuffer = 100

// inboxExtensions are the file extensions ingested from the inbox.
var inboxExtensions = map[string]bool{
	".html": true,
	".htm":  true,
}

// InboxEvent signals a dropped HTML file ready for ingestion.
type InboxEvent struct {
	// Path is the absolute path of the dropped file.
	Path string
}

// InboxWatcher watches a flat drop directory for HTML files. Writes are
// debounced so a file still being copied in is picked up once, complete.
type InboxWatcher struct {
	config  InboxConfig
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]struct{}

	events chan InboxEvent

	droppedEvents atomic.Int64
}

// NewInboxWatcher creates an inbox watcher for the configured directory.
func NewInboxWatcher(config InboxConfig, logger *slog.Logger) (*InboxWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &InboxWatcher{
		config:  config,
		watcher: fsw,
		logger:  logger,
		pending: make(map[string]struct{}),
		events:  make(chan InboxEvent, eventChannelBuffer),
	}, nil
}

// Events returns the channel of inbox events.
func (w *InboxWatcher) Events() <-chan InboxEvent {
	return w.events
}

// Start begins watching the inbox directory, creating it if missing.
func (w *InboxWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.config.Dir, 0755); err != nil {
		return err
	}
	if err := w.watcher.Add(w.config.Dir); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Inbox watcher started",
		"dir", w.config.Dir,
		"debounce", w.config.GetDebounceDelay())

	return nil
}

// Stop stops the watcher.
// The events channel is closed by processEvents when it exits.
func (w *InboxWatcher) Stop() error {
	return w.watcher.Close()
}

// processEvents handles fsnotify events with debouncing.
func (w *InboxWatcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.config.GetDebounceDelay())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Inbox watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent accumulates create/write events for HTML files.
func (w *InboxWatcher) handleFSEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	ext := strings.ToLower(filepath.Ext(event.Name))
	if !inboxExtensions[ext] {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] = struct{}{}
	w.pendingMu.Unlock()

	w.logger.Debug("Inbox file change detected", "path", event.Name)
}

// flushPending emits events for files whose writes have settled.
func (w *InboxWatcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := make([]string, 0, len(w.pending))
	for path := range w.pending {
		toProcess = append(toProcess, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	for _, path := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := os.Stat(path); err != nil {
			continue
		}
		w.sendEvent(InboxEvent{Path: path})
	}
}

// sendEvent sends an event to the output channel.
func (w *InboxWatcher) sendEvent(event InboxEvent) {
	select {
	case w.events <- event:
		w.logger.Debug("Sent inbox event", "path", event.Path)
	default:
		dropped := w.droppedEvents.Add(1)
		w.logger.Warn("Inbox event channel full, dropping event",
			"path", event.Path,
			"total_dropped", dropped)
	}
}

// DroppedEvents returns the number of events dropped due to channel overflow.
func (w *InboxWatcher) DroppedEvents() int64 {
	return w.droppedEvents.Load()
}
