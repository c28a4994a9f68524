package source

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Glob expands include patterns into the sorted list of regular, non-empty files
// they select, minus anything matching an exclude pattern.
//
// An include may be a directory (every file below it), an exact file path, or a
// glob. A glob selects a file when it matches the full path, or when the file
// sits anywhere below the glob's meta-free root and its base name matches the
// glob's last element, so "/var/log/*.log" also selects /var/log/app/x.log.
// When any include is specific (a glob or a file), bare directory includes only
// define where to look and no longer select files on their own. Excludes are
// globs matched against the base name or the full path.
func Glob(includes, excludes []string) ([]string, error) {
	if len(includes) == 0 {
		return nil, nil
	}
	specific := hasSpecificIncludes(includes)
	seen := map[string]struct{}{}
	var files []string

	for _, root := range scanRoots(includes) {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				slog.Warn("failed to walk", "path", p, "error", err)
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if !included(p, includes, specific) || excluded(p, excludes) {
				return nil
			}
			if info, err := d.Info(); err != nil || info.Size() == 0 {
				return nil
			}
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

// hasSpecificIncludes reports whether includes contain a glob, an explicit file,
// or a path that does not exist yet (treated as a file name pattern).
func hasSpecificIncludes(includes []string) bool {
	for _, pattern := range includes {
		cp := filepath.Clean(pattern)
		if hasMeta(cp) {
			return true
		}
		if fi, err := os.Stat(cp); err != nil || !fi.IsDir() {
			return true
		}
	}
	return false
}

func included(p string, includes []string, specific bool) bool {
	base := filepath.Base(p)
	for _, pattern := range includes {
		cp := filepath.Clean(pattern)
		if hasMeta(cp) {
			if ok, _ := filepath.Match(cp, p); ok {
				return true
			}
			if isSubPath(p, globRoot(cp)) {
				if ok, _ := filepath.Match(filepath.Base(cp), base); ok {
					return true
				}
			}
			continue
		}
		if fi, err := os.Stat(cp); err == nil && fi.IsDir() {
			if !specific && isSubPath(p, cp) {
				return true
			}
			continue
		}
		if filepath.Clean(p) == cp || base == cp {
			return true
		}
	}
	return false
}

func excluded(p string, excludes []string) bool {
	base := filepath.Base(p)
	for _, pattern := range excludes {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// scanRoots maps include patterns to the distinct directories to walk:
// the deepest meta-free prefix of a glob, a directory itself, or the parent
// of a file (existing or not).
func scanRoots(includes []string) []string {
	seen := map[string]struct{}{}
	var roots []string
	for _, pattern := range includes {
		p := filepath.Clean(pattern)
		var root string
		switch {
		case hasMeta(p):
			root = globRoot(p)
		default:
			if fi, err := os.Stat(p); err == nil && fi.IsDir() {
				root = p
			} else {
				root = filepath.Dir(p)
			}
		}
		if root == "" {
			root = "."
		}
		if _, ok := seen[root]; !ok {
			seen[root] = struct{}{}
			roots = append(roots, root)
		}
	}
	return roots
}

// globRoot returns the deepest directory of pattern that precedes the first
// segment containing glob meta characters:
//
//	"/var/log/*.log" -> "/var/log"
//	"logs/*/app.txt" -> "logs"
//	"*.log"          -> "."
func globRoot(pattern string) string {
	parts := strings.Split(filepath.ToSlash(pattern), "/")
	for i, part := range parts {
		if hasMeta(part) {
			if i == 0 {
				return "."
			}
			root := filepath.FromSlash(strings.Join(parts[:i], "/"))
			if root == "" {
				return string(filepath.Separator)
			}
			return root
		}
	}
	return filepath.Clean(pattern)
}

func isSubPath(a, b string) bool {
	rel, err := filepath.Rel(b, a)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
