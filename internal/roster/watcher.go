package roster

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ChuLiYu/shift-rota/pkg/types"
)

var log = slog.Default()

// Sink receives reloaded inputs; the controller satisfies it.
type Sink interface {
	SetRoster(roster []types.Worker) error
	SetNeeds(needs types.NeedMatrix) error
}

// Watcher reloads the roster and needs files into a Sink whenever they
// change on disk. Either path may be empty.
type Watcher struct {
	rosterPath string
	needsPath  string
	days       []types.Day
	sink       Sink
	watcher    *fsnotify.Watcher
}

// NewWatcher watches the directories holding the two files. Directories
// are watched rather than files so editors that save by rename are seen.
func NewWatcher(rosterPath, needsPath string, days []types.Day, sink Sink) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		rosterPath: clean(rosterPath),
		needsPath:  clean(needsPath),
		days:       days,
		sink:       sink,
		watcher:    fw,
	}

	dirs := map[string]bool{}
	for _, p := range []string{w.rosterPath, w.needsPath} {
		if p != "" {
			dirs[filepath.Dir(p)] = true
		}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// LoadAll pushes both files into the sink once.
func (w *Watcher) LoadAll() error {
	if w.rosterPath != "" {
		if err := w.reloadRoster(); err != nil {
			return err
		}
	}
	if w.needsPath != "" {
		if err := w.reloadNeeds(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the watcher without running it.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run processes file events until ctx is done. Reload failures are logged
// and the previous inputs stay in force.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.handle(clean(event.Name))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handle(name string) {
	var err error
	switch name {
	case w.rosterPath:
		err = w.reloadRoster()
	case w.needsPath:
		err = w.reloadNeeds()
	default:
		return
	}
	if err != nil {
		log.Warn("Input reload failed", "file", name, "error", err)
		return
	}
	log.Info("Input reloaded", "file", name)
}

func (w *Watcher) reloadRoster() error {
	roster, err := LoadRoster(w.rosterPath)
	if err != nil {
		return err
	}
	return w.sink.SetRoster(roster)
}

func (w *Watcher) reloadNeeds() error {
	needs, err := LoadNeeds(w.needsPath, w.days)
	if err != nil {
		return err
	}
	return w.sink.SetNeeds(needs)
}

func clean(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
