package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	settings "github.com/goliatone/go-settings"
)

// Format selects the on-disk encoding of a FileStore.
type Format string

const (
	FormatTOML    Format = "toml"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat maps a format name (or file extension) to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "msgpack", "mpk":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("store: unsupported file format %q", name)
	}
}

func (f Format) extension() string {
	return "." + string(f)
}

type fileDocument struct {
	Meta   Meta              `toml:"meta" yaml:"meta" msgpack:"meta"`
	Values map[string]string `toml:"values" yaml:"values" msgpack:"values"`
}

// FileStore keeps one file per ref under root, at
// <root>/<identifier>.<format>. Writes go to a temporary file that is renamed
// over the target, so readers never observe a partial snapshot.
type FileStore struct {
	mu     sync.Mutex
	root   string
	format Format
	opts   options
}

// NewFileStore returns a FileStore rooted at root.
func NewFileStore(root string, format Format, opts ...Option) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("store: file store root is required")
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	return &FileStore{root: root, format: format, opts: applyOptions(opts)}, nil
}

// Path returns the file backing ref.
func (s *FileStore) Path(ref Ref) (string, error) {
	id, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(id)+s.format.extension()), nil
}

func (s *FileStore) Load(ctx context.Context, ref Ref) (map[string]string, Meta, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, Meta{}, false, err
	}
	path, err := s.Path(ref)
	if err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok, err := s.read(path)
	if err != nil || !ok {
		return nil, Meta{}, false, err
	}
	return cloneSnapshot(doc.Values), cloneMeta(doc.Meta), true, nil
}

func (s *FileStore) Save(ctx context.Context, ref Ref, changes []settings.Change, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	path, err := s.Path(ref)
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, exists, err := s.read(path)
	if err != nil {
		return Meta{}, err
	}
	next, err := s.opts.nextMeta(doc.Meta, exists, meta)
	if err != nil {
		return cloneMeta(doc.Meta), err
	}
	doc = fileDocument{Meta: next, Values: applyChanges(doc.Values, changes)}
	if err := s.write(path, doc); err != nil {
		return Meta{}, err
	}
	return cloneMeta(next), nil
}

func (s *FileStore) Delete(ctx context.Context, ref Ref, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(ref)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(keys) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("store: remove %s: %w", path, err)
		}
		return nil
	}
	doc, exists, err := s.read(path)
	if err != nil || !exists {
		return err
	}
	for _, key := range keys {
		delete(doc.Values, key)
	}
	doc.Meta.SnapshotID = s.opts.nextID()
	doc.Meta.ETag = nextETag(doc.Meta.ETag)
	doc.Meta.UpdatedAt = s.opts.clock()
	return s.write(path, doc)
}

func (s *FileStore) read(path string) (fileDocument, bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileDocument{}, false, nil
	}
	if err != nil {
		return fileDocument{}, false, fmt.Errorf("store: read %s: %w", path, err)
	}

	var doc fileDocument
	switch s.format {
	case FormatTOML:
		err = toml.Unmarshal(raw, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(raw, &doc)
	case FormatMsgpack:
		err = msgpack.Unmarshal(raw, &doc)
	}
	if err != nil {
		return fileDocument{}, false, fmt.Errorf("store: decode %s: %w", path, err)
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	return doc, true, nil
}

func (s *FileStore) write(path string, doc fileDocument) error {
	raw, err := s.encode(doc)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("store: rename %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) encode(doc fileDocument) ([]byte, error) {
	switch s.format {
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatMsgpack:
		return msgpack.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported format %q", s.format)
	}
}

// WatchFunc receives the snapshot of a watched ref after it changed on disk.
type WatchFunc func(snapshot map[string]string, meta Meta)

// Watch calls fn whenever the file backing ref is rewritten, by this process
// or another one. It returns once the watch is registered; the watch stops
// when ctx is cancelled. fn runs on the watcher goroutine and is called at
// most once per ETag.
func (s *FileStore) Watch(ctx context.Context, ref Ref, fn WatchFunc) error {
	if fn == nil {
		return fmt.Errorf("store: watch callback is required")
	}
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("store: create watcher: %w", err)
	}
	// The directory is watched because atomic renames replace the file inode.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("store: watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		lastETag := ""
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
					continue
				}
				snapshot, meta, found, err := s.Load(ctx, ref)
				if err != nil || !found || meta.ETag == lastETag {
					continue
				}
				lastETag = meta.ETag
				fn(snapshot, meta)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}
