package notify

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

const (
	signalDir = "signals"
	signalExt = ".signal"
)

// FileTransport signals through the shared directory. A signal replaces
// <dir>/signals/<topic>.signal with the sender's origin id; listeners watch
// the directory and ignore their own signals.
type FileTransport struct {
	dir    string
	origin string
	log    util.LoggerInterface
}

var _ Transport = (*FileTransport)(nil)

func NewFileTransport(sharedDir string, log util.LoggerInterface) (*FileTransport, error) {
	dir := filepath.Join(sharedDir, signalDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signal directory: %w", err)
	}
	return &FileTransport{
		dir:    dir,
		origin: uuid.NewString(),
		log:    util.Component(log, "file-transport"),
	}, nil
}

func (t *FileTransport) path(topic string) string {
	return filepath.Join(t.dir, url.PathEscape(topic)+signalExt)
}

func (t *FileTransport) Signal(topic string) error {
	tmp, err := os.CreateTemp(t.dir, ".pending-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(t.origin); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), t.path(topic)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (t *FileTransport) Listen(ctx context.Context, deliver func(topic string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(t.dir); err != nil {
		return fmt.Errorf("watch %s: %w", t.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			topic, ok := t.topicOf(event.Name)
			if !ok {
				continue
			}
			// Best effort: the file may already hold a newer signal.
			if origin, err := os.ReadFile(event.Name); err == nil && string(origin) == t.origin {
				continue
			}
			deliver(topic)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Log error but continue running
			t.log.Warn("signal watch error", util.Field{Key: "error", Value: err})
		}
	}
}

func (t *FileTransport) topicOf(path string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, signalExt) {
		return "", false
	}
	topic, err := url.PathUnescape(strings.TrimSuffix(name, signalExt))
	if err != nil || topic == "" {
		return "", false
	}
	return topic, true
}
