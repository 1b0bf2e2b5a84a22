// Package settings persists extension configuration edits into a JSON
// settings document on disk, preserving the document's formatting, and
// watches the document for outside edits.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// defaultIndent is used for documents that carry no indentation of their
// own, such as freshly created ones.
const defaultIndent = "  "

// Store reads and edits one JSON settings document on disk.
//
// Edits preserve what the user wrote: member order, the document's
// indentation unit, whether it is kept on a single line, and the trailing
// newline. Read-modify-write cycles are serialized, so concurrent Apply
// calls never lose edits to each other.
type Store struct {
	log  *slog.Logger
	path string

	mu sync.Mutex
}

// NewStore creates a store for the document at path. The file does not have
// to exist yet; the first edit creates it.
func NewStore(log *slog.Logger, path string) *Store {
	return &Store{
		log:  log.With("component", "settings"),
		path: path,
	}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load decodes the current document. A missing file is an empty document,
// not an error.
func (s *Store) Load() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

func (s *Store) load() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	if doc == nil {
		doc = map[string]any{}
	}

	return doc, nil
}

// Apply merges one edit into the document at the given key path, creating
// intermediate objects as needed. A nil value deletes the key.
func (s *Store) Apply(path []string, value any) error {
	if len(path) == 0 {
		return fmt.Errorf("settings edit needs a non-empty path")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	exists := err == nil

	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		raw = []byte("{}")
	case err != nil:
		return fmt.Errorf("read settings: %w", err)
	}

	style := docStyle{indent: defaultIndent, trailingNewline: true}
	if exists {
		style = detectStyle(raw)
	}

	root := newObject()
	if err := json.Unmarshal(raw, root); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}

	if err := edit(root, path, value); err != nil {
		return err
	}

	var out []byte
	if style.indent == "" {
		out, err = json.Marshal(root)
	} else {
		out, err = json.MarshalIndent(root, "", style.indent)
	}

	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if style.trailingNewline {
		out = append(out, '\n')
	}

	mode := fs.FileMode(0o644)

	if exists {
		if info, err := os.Stat(s.path); err == nil {
			mode = info.Mode().Perm()
		}
	}

	if err := os.WriteFile(s.path, out, mode); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	s.log.Debug("Settings updated",
		"path", strings.Join(path, "."),
		"deleted", value == nil,
	)

	return nil
}

// edit descends to the parent of the final key, creating objects on the
// way, then sets or deletes the leaf.
func edit(root *Object, path []string, value any) error {
	obj := root

	for i, key := range path[:len(path)-1] {
		member, ok := obj.Get(key)
		if !ok {
			child := NewObjectValue()
			obj.Set(key, child)
			obj, _ = child.Object()

			continue
		}

		childObj, ok := member.Object()
		if !ok {
			return fmt.Errorf("settings path %q: %q is not an object",
				strings.Join(path, "."), strings.Join(path[:i+1], "."))
		}

		obj = childObj
	}

	leaf := path[len(path)-1]

	if value == nil {
		obj.Delete(leaf)

		return nil
	}

	v, err := NewValue(value)
	if err != nil {
		return fmt.Errorf("encode settings value: %w", err)
	}

	obj.Set(leaf, v)

	return nil
}

// docStyle captures the formatting conventions a rewrite must keep.
type docStyle struct {
	indent          string
	trailingNewline bool
}

// detectStyle infers the indentation unit from the first indented line. A
// document kept on a single line stays compact (empty indent).
func detectStyle(data []byte) docStyle {
	style := docStyle{indent: defaultIndent, trailingNewline: true}

	if len(data) > 0 {
		style.trailingNewline = data[len(data)-1] == '\n'
	}

	body := bytes.TrimRight(data, "\n \t")
	if bytes.IndexByte(body, '\n') < 0 {
		style.indent = ""

		return style
	}

	for _, line := range bytes.Split(body, []byte("\n")) {
		trimmed := bytes.TrimLeft(line, " \t")
		if len(trimmed) == 0 || len(trimmed) == len(line) {
			continue
		}

		style.indent = string(line[:len(line)-len(trimmed)])

		break
	}

	return style
}

// Watch emits the decoded document after every on-disk change until ctx is
// done, starting with the current document. The parent directory is watched
// rather than the file itself, so editors that save by rename-replace are
// still observed.
func (s *Store) Watch(ctx context.Context) (<-chan map[string]any, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()

		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	ch := make(chan map[string]any, 1)

	doc, err := s.Load()
	if err != nil {
		s.log.Warn("Settings unreadable at watch start", "error", err)
	} else {
		ch <- doc
	}

	go s.watchLoop(ctx, watcher, ch)

	return ch, nil
}

// watchLoop forwards document reloads triggered by filesystem events.
func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, ch chan map[string]any) {
	defer close(ch)
	defer watcher.Close()

	name := filepath.Base(s.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != name {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			doc, err := s.Load()
			if err != nil {
				// Mid-save states can be transiently unreadable; the
				// finishing write delivers the real document.
				s.log.Debug("Settings reload failed", "error", err)

				continue
			}

			// Coalesce to the newest document if the consumer is slow.
			// watchLoop is the only sender, so the drain cannot race.
			select {
			case ch <- doc:
			default:
				select {
				case <-ch:
				default:
				}

				ch <- doc
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			s.log.Warn("Settings watcher error", "error", err)

		case <-ctx.Done():
			return
		}
	}
}
