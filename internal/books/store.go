// Package books persists finished TopicBooks as Markdown files in one flat
// directory. The directory listing is the only index.
package books

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/mohammad-safakhou/topicbook/internal/logging"
	"github.com/sirupsen/logrus"
)

const ext = ".md"

var (
	ErrInvalidName = errors.New("invalid book name")
	ErrNotFound    = errors.New("book not found")
)

var hostileChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// Document is a persisted book.
type Document struct {
	Name    string `json:"filename"`
	Content string `json:"content"`
}

// Store writes and reads books under Dir.
type Store struct {
	dir    string
	mu     sync.Mutex
	logger *logrus.Entry
}

func NewStore(dir string, logger logrus.FieldLogger) *Store {
	return &Store{dir: dir, logger: logging.Component(logger, "books")}
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// BaseName derives the file stem for a topic: hostile characters dropped,
// every whitespace rune replaced by "_".
func BaseName(topic string) string {
	base := hostileChars.ReplaceAllString(topic, "")
	base = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, base)
	base = strings.Trim(base, "_.")
	if base == "" {
		return "topicbook"
	}
	return base
}

// Persist writes content under the first free name in base.md, base_1.md,
// base_2.md, ... and returns the written path. Creation is exclusive, so two
// concurrent persists of the same topic never share a file.
func (s *Store) Persist(topic, content string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	base := BaseName(topic)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; ; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("write %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("close %s: %w", name, err)
		}
		s.logger.WithField("file", name).Info("book persisted")
		return path, nil
	}
}

// List returns the names of all persisted books, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ValidateName rejects empty names and anything that could leave the directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "",
		strings.Contains(name, ".."),
		strings.ContainsAny(name, "/\\\x00"),
		filepath.IsAbs(name),
		filepath.VolumeName(name) != "":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Retrieve returns the named book.
func (s *Store) Retrieve(name string) (Document, error) {
	if err := ValidateName(name); err != nil {
		return Document{}, err
	}
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", name, err)
	}
	return Document{Name: name, Content: string(b)}, nil
}
