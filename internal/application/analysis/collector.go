package analysis

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

// Collector gathers every file ending in Extension below a checkout root.
type Collector struct {
	Extension string
}

// Collect walks root and returns files in traversal order with
// slash-separated paths relative to root. A file that is not valid UTF-8
// fails the whole collection. Symlinks to regular files inside root are
// read through and reported under the link's own path; links leaving root
// and links to directories are skipped.
func (c *Collector) Collect(ctx context.Context, root string) ([]domain.SourceFile, error) {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, err
	}
	var files []domain.SourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), c.Extension) {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if !linksInside(path, realRoot) {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !utf8.Valid(data) {
			return fmt.Errorf("%s: content is not valid UTF-8 text", rel)
		}
		files = append(files, domain.SourceFile{Path: rel, Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// linksInside reports whether the symlink at path resolves to a regular file
// below root. Dangling links count as outside.
func linksInside(path, root string) bool {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return false
	}
	info, err := os.Stat(target)
	return err == nil && info.Mode().IsRegular()
}
