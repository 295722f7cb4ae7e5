package providers

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emarren/vaultflow/pkg/schema"
)

// ConfirmFunc asks the user whether an existing document may be overwritten.
type ConfirmFunc func(ctx context.Context, path string) (bool, error)

// FSDocumentStore implements DocumentStore on a directory tree. It is the
// default store for standalone operation; embedded hosts supply their own.
type FSDocumentStore struct {
	root    string
	confirm ConfirmFunc
}

// NewFSDocumentStore creates a store rooted at dir.
func NewFSDocumentStore(dir string) *FSDocumentStore {
	return &FSDocumentStore{root: dir}
}

// WithConfirmer installs the overwrite confirmation hook. Without one,
// confirmed writes proceed as if approved.
func (s *FSDocumentStore) WithConfirmer(fn ConfirmFunc) *FSDocumentStore {
	s.confirm = fn
	return s
}

// abs maps a vault-relative path onto the filesystem, rejecting escapes.
func (s *FSDocumentStore) abs(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "path %q escapes the vault", path)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FSDocumentStore) Read(ctx context.Context, path string) (string, error) {
	full, err := s.abs(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return "", schema.NewErrorf(schema.ErrCodeNotFound, "document %q not found", path)
	}
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeStore, "read %q: %s", path, err.Error()).WithCause(err)
	}
	return string(data), nil
}

func (s *FSDocumentStore) Write(ctx context.Context, path, content string, opts WriteOptions) (WriteResult, error) {
	full, err := s.abs(path)
	if err != nil {
		return WriteResult{}, err
	}

	_, statErr := os.Stat(full)
	exists := statErr == nil

	mode := opts.Mode
	if mode == "" {
		mode = WriteOverwrite
	}

	switch mode {
	case WriteCreate:
		if exists {
			return WriteResult{Path: path}, schema.NewErrorf(schema.ErrCodeStore, "document %q already exists", path)
		}
	case WriteOverwrite:
		if exists && opts.Confirm && s.confirm != nil {
			ok, err := s.confirm(ctx, path)
			if err != nil {
				return WriteResult{}, schema.NewErrorf(schema.ErrCodeProvider, "confirm overwrite of %q: %s", path, err.Error()).WithCause(err)
			}
			if !ok {
				return WriteResult{Path: path, Declined: true}, nil
			}
		}
	case WriteAppend, WritePrepend:
		if exists {
			prev, err := os.ReadFile(full)
			if err != nil {
				return WriteResult{}, schema.NewErrorf(schema.ErrCodeStore, "read %q: %s", path, err.Error()).WithCause(err)
			}
			if mode == WriteAppend {
				content = string(prev) + content
			} else {
				content = content + string(prev)
			}
		}
	default:
		return WriteResult{}, schema.NewErrorf(schema.ErrCodeValidation, "unknown write mode %q", mode)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return WriteResult{}, schema.NewErrorf(schema.ErrCodeStore, "create folder for %q: %s", path, err.Error()).WithCause(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return WriteResult{}, schema.NewErrorf(schema.ErrCodeStore, "write %q: %s", path, err.Error()).WithCause(err)
	}
	return WriteResult{Path: path, Written: true}, nil
}

func (s *FSDocumentStore) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.abs(path)
	if err != nil {
		return false, err
	}
	_, statErr := os.Stat(full)
	if statErr == nil {
		return true, nil
	}
	if os.IsNotExist(statErr) {
		return false, nil
	}
	return false, schema.NewErrorf(schema.ErrCodeStore, "stat %q: %s", path, statErr.Error()).WithCause(statErr)
}

func (s *FSDocumentStore) List(ctx context.Context, folder string, recursive bool) ([]string, error) {
	base, err := s.abs(folder)
	if err != nil {
		return nil, err
	}

	var out []string
	if recursive {
		err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(s.root, p)
			if relErr != nil {
				return relErr
			}
			out = append(out, filepath.ToSlash(rel))
			return nil
		})
	} else {
		var entries []fs.DirEntry
		entries, err = os.ReadDir(base)
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			rel := e.Name()
			if folder != "" && folder != "." {
				rel = strings.TrimSuffix(folder, "/") + "/" + rel
			}
			out = append(out, rel)
		}
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "folder %q not found", folder)
		}
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list %q: %s", folder, err.Error()).WithCause(err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *FSDocumentStore) Folders(ctx context.Context, folder string) ([]string, error) {
	base, err := s.abs(folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "folder %q not found", folder)
		}
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list folders in %q: %s", folder, err.Error()).WithCause(err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rel := e.Name()
		if folder != "" && folder != "." {
			rel = strings.TrimSuffix(folder, "/") + "/" + rel
		}
		out = append(out, rel)
	}
	sort.Strings(out)
	return out, nil
}

func (s *FSDocumentStore) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if query == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty search query")
	}
	needle := strings.ToLower(query)

	var hits []SearchHit
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if limit > 0 && len(hits) >= limit {
			return fs.SkipAll
		}
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			return readErr
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				hits = append(hits, SearchHit{
					Path:    filepath.ToSlash(rel),
					Line:    i + 1,
					Snippet: strings.TrimSpace(line),
				})
				if limit > 0 && len(hits) >= limit {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "search: %s", err.Error()).WithCause(err)
	}
	return hits, nil
}

func (s *FSDocumentStore) Rename(ctx context.Context, oldPath, newPath string) error {
	from, err := s.abs(oldPath)
	if err != nil {
		return err
	}
	to, err := s.abs(newPath)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(from); os.IsNotExist(statErr) {
		return schema.NewErrorf(schema.ErrCodeNotFound, "document %q not found", oldPath)
	}
	if _, statErr := os.Stat(to); statErr == nil {
		return schema.NewErrorf(schema.ErrCodeStore, "document %q already exists", newPath)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create folder for %q: %s", newPath, err.Error()).WithCause(err)
	}
	if err := os.Rename(from, to); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "rename %q to %q: %s", oldPath, newPath, err.Error()).WithCause(err)
	}
	return nil
}

var _ DocumentStore = (*FSDocumentStore)(nil)
