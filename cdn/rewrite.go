package cdn

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Rewrite points local asset references at their CDN copies.
type Rewrite struct {
	BaseURL   string          // public CDN root, e.g. https://example.b-cdn.net
	Prefix    string          // remote key prefix used for the upload
	Dir       string          // local directory being rewritten, e.g. "img"
	Uploaded  map[string]bool // root-relative paths that reached the CDN
	Extension []string        // file types to rewrite; defaults to RewriteExtensions
}

// RewriteExtensions lists the generated file types that reference assets.
var RewriteExtensions = []string{".html", ".xml", ".json", ".css"}

// RewriteTree rewrites references of the form /<Dir>/<file> in every
// matching file below root. Only files present in Uploaded are rewritten so
// a failed upload keeps its local URL. It returns the number of files
// changed.
func RewriteTree(root string, rw Rewrite) (int, error) {
	base := strings.TrimRight(rw.BaseURL, "/")
	if base == "" || len(rw.Uploaded) == 0 {
		return 0, nil
	}
	exts := rw.Extension
	if len(exts) == 0 {
		exts = RewriteExtensions
	}
	dir := strings.Trim(rw.Dir, "/")
	re := regexp.MustCompile(`(^|["'(\s,=>])/` + regexp.QuoteMeta(dir) + `/([^"'()\s,?#<>]+)`)

	changed := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasExt(p, exts) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out := re.ReplaceAllStringFunc(string(data), func(m string) string {
			sub := re.FindStringSubmatch(m)
			lead, name := sub[1], sub[2]
			rel := dir + "/" + name
			if !rw.Uploaded[rel] {
				return m
			}
			return lead + base + "/" + RemoteKey(rw.Prefix, rel)
		})
		if out == string(data) {
			return nil
		}
		if err := os.WriteFile(p, []byte(out), 0o644); err != nil {
			return fmt.Errorf("rewrite %s: %w", p, err)
		}
		changed++
		return nil
	})
	return changed, err
}

func hasExt(p string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
