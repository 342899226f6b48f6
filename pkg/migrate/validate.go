package migrate

import (
	"bufio"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
)

var fileNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	annotationUp    = "-- +goose Up"
	annotationDown  = "-- +goose Down"
	annotationBegin = "-- +goose StatementBegin"
	annotationEnd   = "-- +goose StatementEnd"
)

// Validate checks every .sql file in fsys: the YYYYMMDDHHMMSS_name.sql
// naming, unique versions, an Up section followed by a Down section, and
// balanced StatementBegin/StatementEnd blocks.
func Validate(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	seen := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		match := fileNameRe.FindStringSubmatch(name)
		if match == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[match[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", match[1], prev, name)
		}
		seen[match[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := checkAnnotations(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	if len(seen) == 0 {
		return fmt.Errorf("no migrations found")
	}
	return nil
}

func checkAnnotations(body string) error {
	var up, down bool
	depth := 0
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case annotationUp:
			up = true
		case annotationDown:
			if !up {
				return fmt.Errorf("%q before %q", annotationDown, annotationUp)
			}
			if depth != 0 {
				return fmt.Errorf("%q inside an open statement block", annotationDown)
			}
			down = true
		case annotationBegin:
			depth++
			if depth > 1 {
				return fmt.Errorf("nested %q", annotationBegin)
			}
		case annotationEnd:
			depth--
			if depth < 0 {
				return fmt.Errorf("%q without %q", annotationEnd, annotationBegin)
			}
		}
	}
	switch {
	case !up:
		return fmt.Errorf("missing %q", annotationUp)
	case !down:
		return fmt.Errorf("missing %q", annotationDown)
	case depth != 0:
		return fmt.Errorf("unterminated %q", annotationBegin)
	}
	return scanner.Err()
}
