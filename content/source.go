package content

import (
	"context"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/nickjmiller/floneum/errors"
)

// Source fetches pages by URL.
type Source interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// MapSource serves pages from memory.
type MapSource struct {
	mu    sync.RWMutex
	pages map[string]*Page
}

// NewMapSource creates an empty in-memory source.
func NewMapSource() *MapSource {
	return &MapSource{pages: make(map[string]*Page)}
}

// Put registers page under its URL.
func (s *MapSource) Put(page *Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page.URL] = page
}

// Fetch returns the page registered for url.
func (s *MapSource) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[url]
	if !ok {
		return nil, errors.New(errors.PhaseContent, errors.KindInvalidInput).
			Resource("page").
			Detail("no page for %q", url).
			Build()
	}
	return p, nil
}

// FileScheme prefixes URLs served by DirSource.
const FileScheme = "file://"

// DirSource serves text files below a directory. Only files whose slash
// separated relative path matches one of the include patterns are visible.
type DirSource struct {
	fsys     fs.FS
	includes []string
}

// NewDirSource creates a source rooted at dir. No includes means "**/*".
func NewDirSource(dir string, includes ...string) *DirSource {
	return NewFSSource(os.DirFS(dir), includes...)
}

// NewFSSource creates a source over fsys.
func NewFSSource(fsys fs.FS, includes ...string) *DirSource {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &DirSource{fsys: fsys, includes: includes}
}

func (s *DirSource) visible(name string) bool {
	for _, pattern := range s.includes {
		matched, err := doublestar.Match(pattern, name)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// Fetch reads the file named by url, with or without the file:// prefix.
// The page title is the file's base name without extension.
func (s *DirSource) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := path.Clean(strings.TrimPrefix(url, FileScheme))
	if !fs.ValidPath(name) || !s.visible(name) {
		return nil, errors.New(errors.PhaseContent, errors.KindInvalidInput).
			Resource("page").
			Detail("path %q is not served", url).
			Build()
	}

	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return nil, errors.BackendFailure(errors.PhaseContent, "read "+name, err)
	}

	title := strings.TrimSuffix(path.Base(name), path.Ext(name))
	Logger().Debug("page fetched", zap.String("path", name), zap.Int("bytes", len(data)))
	return NewTextPage(FileScheme+name, title, string(data)), nil
}

// List returns the URLs of every visible file in lexical order.
func (s *DirSource) List() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range s.includes {
		matches, err := doublestar.Glob(s.fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Wrap(errors.PhaseContent, errors.KindInvalidInput, err, "glob "+pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, FileScheme+m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
