// Package scaffold creates new podsite projects from an embedded starter
// tree.
package scaffold

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"
)

// Templates contains the starter project. Files ending in .tmpl are
// executed as Go text/template; everything else is copied as is.
//
//go:embed all:templates
var Templates embed.FS

const templateRoot = "templates"

// ErrExists is returned when the target directory is already present.
var ErrExists = errors.New("directory already exists")

// Data holds the variables passed to every template.
type Data struct {
	ProjectName string
	SiteName    string
	Date        string
}

// NewData derives template data from a project directory path.
func NewData(dir string, now time.Time) Data {
	name := filepath.Base(filepath.Clean(dir))
	return Data{
		ProjectName: name,
		SiteName:    toTitle(name),
		Date:        now.Format("2006-01-02"),
	}
}

// renames maps template names that cannot be embedded or checked in under
// their real names.
var renames = map[string]string{
	"dotenv":    ".env.example",
	"gitignore": ".gitignore",
	".gitkeep":  "",
}

// Create writes the starter project into dir, which must not exist yet. It
// returns the created files relative to dir.
func Create(dir string, data Data, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, dir)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	var created []string
	err := fs.WalkDir(Templates, templateRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, templateRoot), "/")
		outRel := outputName(rel)
		outPath := filepath.Join(dir, filepath.FromSlash(outRel))

		if d.IsDir() {
			return os.MkdirAll(outPath, 0o755)
		}
		if outRel == "" || strings.HasSuffix(outRel, "/") {
			return nil
		}

		content, err := Templates.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if strings.HasSuffix(path, ".tmpl") {
			content, err = render(path, content, data)
			if err != nil {
				return err
			}
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(outPath, content, 0o644); err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		logger.Debug("created file", zap.String("path", outRel))
		created = append(created, outRel)
		return nil
	})
	if err != nil {
		return created, err
	}
	return created, nil
}

// outputName strips the .tmpl suffix and applies renames. Placeholder files
// map to their directory with a trailing slash.
func outputName(rel string) string {
	rel = strings.TrimSuffix(rel, ".tmpl")
	dir, base := "", rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		dir, base = rel[:i+1], rel[i+1:]
	}
	if to, ok := renames[base]; ok {
		return dir + to
	}
	return rel
}

func render(name string, content []byte, data Data) ([]byte, error) {
	tmpl, err := template.New(filepath.Base(name)).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	return []byte(b.String()), nil
}

// toTitle converts a hyphenated or lowercase name to a title-case string.
// e.g. "night-shift" -> "Night Shift", "nightshift" -> "Nightshift"
func toTitle(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
