package content

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Collection is the published episode sequence, newest first.
type Collection struct {
	items []Episode
}

// Assemble drops drafts and orders the rest by date descending. Episodes
// with equal dates keep their relative input order.
func Assemble(episodes []Episode) Collection {
	items := make([]Episode, 0, len(episodes))
	for _, ep := range episodes {
		if ep.Draft {
			continue
		}
		items = append(items, ep)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
	return Collection{items: items}
}

// Items returns a copy of the sorted sequence.
func (c Collection) Items() []Episode {
	out := make([]Episode, len(c.items))
	copy(out, c.items)
	return out
}

// Len reports the number of published episodes.
func (c Collection) Len() int {
	return len(c.items)
}

// Latest returns the newest episode. ok is false for an empty collection.
func (c Collection) Latest() (ep Episode, ok bool) {
	if len(c.items) == 0 {
		return Episode{}, false
	}
	return c.items[0], true
}

// Tags returns a sorted, deduplicated slice of all tags.
func (c Collection) Tags() []string {
	set := make(map[string]struct{})
	for _, ep := range c.items {
		for _, t := range ep.Tags {
			if n := normalizeTag(t); n != "" {
				set[n] = struct{}{}
			}
		}
	}
	result := make([]string, 0, len(set))
	for t := range set {
		result = append(result, t)
	}
	sort.Strings(result)
	return result
}

// Load parses every markdown file below root and assembles the collection.
// Files are read in lexical path order, which is the tie-break order for
// equal dates. A missing root yields an empty collection.
func Load(ctx context.Context, root string) (Collection, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return Collection{}, nil
		}
		return Collection{}, fmt.Errorf("checking episodes directory: %w", err)
	}

	var episodes []Episode
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".md") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading episode %s: %w", p, err)
		}
		ep, err := Parse(p, filepath.ToSlash(rel), raw)
		if err != nil {
			return err
		}
		episodes = append(episodes, ep)
		return nil
	})
	if err != nil {
		return Collection{}, err
	}
	return Assemble(episodes), nil
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
