package markdown

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type imageCall struct {
	src, alt string
	sizes    []string
}

func fakeImages(calls *[]imageCall) ImageFunc {
	return func(_ context.Context, src, alt string, sizes ...string) (string, error) {
		*calls = append(*calls, imageCall{src, alt, sizes})
		if alt == "" {
			return "", errors.New("alt required")
		}
		return `<picture><img alt="` + alt + `" src="` + src + `"></picture>`, nil
	}
}

func TestRenderBasics(t *testing.T) {
	r := New(nil)
	got, err := r.Render(context.Background(), "# Show notes\n\nWe talk **Go** and `esbuild`.\n\n- one\n- two\n")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{`<h1 id="show-notes">Show notes</h1>`, "<strong>Go</strong>", "<code>esbuild</code>", "<li>one</li>"} {
		if !strings.Contains(got, want) {
			t.Errorf("Render output missing %q: %q", want, got)
		}
	}
}

func TestRenderCodeBlockWithLanguage(t *testing.T) {
	got, err := New(nil).Render(context.Background(), "```go\nfmt.Println(1)\n```\n")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, `<code class="language-go">`) {
		t.Errorf("expected language class, got %q", got)
	}
}

func TestRenderTables(t *testing.T) {
	got, err := New(nil).Render(context.Background(), "| a | b |\n|---|---|\n| 1 | 2 |\n")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "<table>") || !strings.Contains(got, "<td>1</td>") {
		t.Errorf("expected GFM table, got %q", got)
	}
}

func TestRenderOmitsRawHTMLAndUnsafeLinks(t *testing.T) {
	got, err := New(nil).Render(context.Background(), "<script>alert(1)</script>\n\n[x](javascript:alert(1))\n")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(got, "<script>") || strings.Contains(got, "javascript:") {
		t.Errorf("unsafe content rendered: %q", got)
	}
}

func TestRenderImageShortcode(t *testing.T) {
	var calls []imageCall
	r := New(fakeImages(&calls))
	src := "Intro\n\n{% image \"./src/img/studio.jpg\", \"The studio\", \"(min-width: 30em) 50vw\" %}\n\nOutro with {%image 'a.png', 'inline'%} text.\n"
	got, err := r.Render(context.Background(), src)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 image calls, got %d", len(calls))
	}
	if calls[0].src != "./src/img/studio.jpg" || calls[0].alt != "The studio" {
		t.Errorf("unexpected first call %+v", calls[0])
	}
	if len(calls[0].sizes) != 1 || calls[0].sizes[0] != "(min-width: 30em) 50vw" {
		t.Errorf("unexpected sizes %+v", calls[0].sizes)
	}
	if len(calls[1].sizes) != 0 {
		t.Errorf("expected no sizes for second call, got %+v", calls[1].sizes)
	}
	if strings.Contains(got, "PODSITEIMAGE") {
		t.Errorf("placeholder left in output: %q", got)
	}
	if !strings.Contains(got, `<picture><img alt="The studio" src="./src/img/studio.jpg"></picture>`) {
		t.Errorf("block image missing: %q", got)
	}
	if strings.Contains(got, "<p><picture>") {
		t.Errorf("block image should not be wrapped in a paragraph: %q", got)
	}
	if !strings.Contains(got, `Outro with <picture><img alt="inline" src="a.png"></picture> text.`) {
		t.Errorf("inline image missing: %q", got)
	}
}

func TestRenderImageShortcodeErrors(t *testing.T) {
	var calls []imageCall
	r := New(fakeImages(&calls))
	if _, err := r.Render(context.Background(), `{% image "a.png" %}`); err == nil {
		t.Errorf("expected error for missing alt text")
	}
	if _, err := r.Render(context.Background(), `{% image a.png, "x" %}`); err == nil {
		t.Errorf("expected error for unquoted argument")
	}
	if _, err := New(nil).Render(context.Background(), `{% image "a.png", "x" %}`); err == nil {
		t.Errorf("expected error without image renderer")
	}
}

func TestParseArgs(t *testing.T) {
	got, err := parseArgs(`"a \"quoted\" src", 'single', "x"`)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	want := []string{`a "quoted" src`, "single", "x"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("parseArgs = %q, want %q", got, want)
	}
	for _, bad := range []string{`"open`, `"a" "b"`, `x`} {
		if _, err := parseArgs(bad); err == nil {
			t.Errorf("parseArgs(%q) expected error", bad)
		}
	}
}

func TestSafeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/episodes/1/", "/episodes/1/"},
		{"#top", "#top"},
		{"https://example.com/a?b=1&c=2", "https://example.com/a?b=1&amp;c=2"},
		{"mailto:host@example.com", "mailto:host@example.com"},
		{"javascript:alert(1)", ""},
		{"relative/path", ""},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := SafeURL(tt.input); got != tt.expected {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPlainText(t *testing.T) {
	got := PlainText("# Title\n\nSome **bold** &amp; [link](https://x.y).\n\n{% image \"a.png\", \"b\" %}\n")
	if got != "Title Some bold & link." {
		t.Errorf("PlainText = %q", got)
	}
}
