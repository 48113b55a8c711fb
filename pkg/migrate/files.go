package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	fileRe     = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	unsafeName = regexp.MustCompile(`[^a-z0-9_]+`)
)

type migrationFile struct {
	Version int64
	Name    string
}

// scan lists the SQL migrations in dir ordered by version. It fails on a bad
// filename, a duplicate version or a file missing either goose section.
func scan(fsys fs.FS, dir string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations %q: %w", dir, err)
	}

	var files []migrationFile
	seen := map[int64]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := fileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		version, _ := strconv.ParseInt(m[1], 10, 64)
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d in %q and %q", version, prev, name)
		}
		seen[version] = name

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", name, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				return nil, fmt.Errorf("migration %q missing %q", name, marker)
			}
		}
		files = append(files, migrationFile{Version: version, Name: m[2]})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

func hasVersion(files []migrationFile, version int64) bool {
	for _, f := range files {
		if f.Version == version {
			return true
		}
	}
	return false
}

// Validate checks the migrations in dir on disk, or the embedded set when
// dir is empty.
func Validate(dir string) error {
	var err error
	if dir == "" {
		_, err = scan(embedded, embeddedDir)
	} else {
		_, err = scan(os.DirFS(dir), ".")
	}
	return err
}

// Create writes an empty goose migration into dir and returns its path. The
// version is now, or one second past the newest existing migration when that
// is later, so versions only ever increase.
func Create(dir, name string, now time.Time) (string, error) {
	slug := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	files, err := scan(os.DirFS(dir), ".")
	if err != nil {
		return "", err
	}
	version := now.UTC()
	if n := len(files); n > 0 {
		newest, err := time.Parse(versionLayout, strconv.FormatInt(files[n-1].Version, 10))
		if err == nil && !version.After(newest) {
			version = newest.Add(time.Second)
		}
	}

	full := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version.Format(versionLayout), slug))
	body := fmt.Sprintf("-- +goose Up\n-- +goose StatementBegin\n-- %[1]s\n-- +goose StatementEnd\n\n-- +goose Down\n-- +goose StatementBegin\n-- rollback %[1]s\n-- +goose StatementEnd\n", slug)
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", full, err)
	}
	return full, nil
}
