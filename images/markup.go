package images

import (
	"context"
	"fmt"
	"html"
	"strings"
)

// Shortcode processes src and returns a responsive <picture> fragment. Both
// src and alt are required; sizes defaults to the full viewport width.
func (t *Transformer) Shortcode(ctx context.Context, src, alt string, sizes ...string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", ErrMissingSource
	}
	if strings.TrimSpace(alt) == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingAltText, src)
	}
	res, err := t.Process(ctx, src)
	if err != nil {
		return "", err
	}
	s := DefaultSizes
	if len(sizes) > 0 && strings.TrimSpace(sizes[0]) != "" {
		s = strings.TrimSpace(sizes[0])
	}
	return Markup(res, alt, s), nil
}

// Sources reports how many distinct source images have been processed.
func (t *Transformer) Sources() int {
	return t.cache.Len()
}

// Markup renders res as a <picture> element. Modern formats become <source>
// candidates and the last legacy format backs the <img> fallback, whose src
// is its narrowest variant and whose dimensions are those of its widest.
func Markup(res Result, alt, sizes string) string {
	if len(res.Sets) == 0 {
		return ""
	}
	fallback := res.Sets[len(res.Sets)-1]
	for i := len(res.Sets) - 1; i >= 0; i-- {
		if res.Sets[i].Format.legacy() {
			fallback = res.Sets[i]
			break
		}
	}

	var b strings.Builder
	multi := len(res.Sets) > 1
	if multi {
		b.WriteString("<picture>")
		for _, set := range res.Sets {
			if set.Format == fallback.Format {
				continue
			}
			fmt.Fprintf(&b, `<source type="%s" srcset="%s" sizes="%s">`,
				set.Format.MIME(), srcset(set), html.EscapeString(sizes))
		}
	}

	smallest := fallback.Outputs[0]
	largest := fallback.Outputs[len(fallback.Outputs)-1]
	fmt.Fprintf(&b, `<img alt="%s" loading="lazy" decoding="async" src="%s" width="%d" height="%d"`,
		html.EscapeString(alt), smallest.URL, largest.Width, largest.Height)
	if len(fallback.Outputs) > 1 {
		fmt.Fprintf(&b, ` srcset="%s" sizes="%s"`, srcset(fallback), html.EscapeString(sizes))
	}
	b.WriteString(">")
	if multi {
		b.WriteString("</picture>")
	}
	return b.String()
}

func srcset(set Set) string {
	parts := make([]string, len(set.Outputs))
	for i, o := range set.Outputs {
		parts[i] = fmt.Sprintf("%s %dw", o.URL, o.Width)
	}
	return strings.Join(parts, ", ")
}
