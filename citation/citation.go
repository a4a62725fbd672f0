package citation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	. "github.com/stevegt/goadapt"
)

// Delimiter separates the answer from the sources block in a model
// reply.  The system prompt tells the model to emit it verbatim, so
// it must not change.
const Delimiter = "SOURCES:"

// FallbackTitle is the title of the single citation we synthesize
// when a sources block is present but none of its entries parse.
const FallbackTitle = "Tax Information"

// ws is the whitespace class used throughout the sources grammar.  It
// includes U+FEFF so that a stray byte order mark never ends up in a
// field.
const ws = `[\t\n\v\f\r \x{a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}]`

// ordinalRe finds the bracketed ordinals that may start a block.
var ordinalRe = regexp.MustCompile(`\[[0-9]+\]`)

// blockRe matches one citation block, already cut out of the sources
// text:
//
//	[<ordinal>] Title: <title>
//	Content: <content>
//	URL: <url>
//
// Content and URL are optional, but only in that order.
var blockRe = regexp.MustCompile(`(?s)\A\[([0-9]+)\]` + ws + `+Title:` + ws + `+(.*?)` +
	`(?:` + ws + `+Content:` + ws + `+(.*?)(?:` + ws + `+URL:` + ws + `+(.*?))?)?` + ws + `*\z`)

// isSpace reports whether r is in the ws class.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0xa0, 0x1680, 0x2028, 0x2029, 0x202f, 0x205f, 0x3000, 0xfeff:
		return true
	}
	return r >= 0x2000 && r <= 0x200a
}

func trim(s string) string {
	return strings.TrimFunc(s, isSpace)
}

// Citation is one source cited by the model.  URL is empty when the
// block carried no URL field.
type Citation struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
}

// HasURL returns true if the citation carries a link.
func (c Citation) HasURL() bool {
	return c.URL != ""
}

func (c Citation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%s %s", c.ID, c.Title)
	if c.Content != "" {
		fmt.Fprintf(&b, "\n    %s", c.Content)
	}
	if c.HasURL() {
		fmt.Fprintf(&b, "\n    %s", c.URL)
	}
	return b.String()
}

// Response is a model reply split into the answer text and the
// sources cited after the delimiter.
type Response struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Format renders the answer followed by a numbered list of sources,
// if any.
func (r Response) Format() string {
	if len(r.Citations) == 0 {
		return r.Answer
	}
	var b strings.Builder
	b.WriteString(r.Answer)
	fmt.Fprintf(&b, "\n\nSources (%d):\n", len(r.Citations))
	for _, c := range r.Citations {
		b.WriteString(c.String())
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Parse splits raw model output into an answer and citations.
//
// Everything before the first Delimiter is the answer.  Everything
// after it is scanned for citation blocks; ordinals are passed
// through as-is, in the order they appear.  If the sources text is
// non-blank but holds no parsable block, the whole of it becomes a
// single FallbackTitle citation so it is never silently dropped.
//
// Parse never fails.  It is safe for concurrent use.
func Parse(raw string) (res Response) {
	res.Citations = []Citation{}
	head, tail, found := strings.Cut(raw, Delimiter)
	if !found {
		res.Answer = trim(raw)
		return
	}
	res.Answer = trim(head)
	res.Citations = append(res.Citations, scan(tail)...)
	if len(res.Citations) > 0 {
		return
	}
	rest := trim(tail)
	if rest != "" {
		res.Citations = append(res.Citations, Citation{
			ID:      "1",
			Title:   FallbackTitle,
			Content: rest,
		})
	}
	return
}

// split cuts txt into candidate blocks.  A block starts at an ordinal
// that opens txt or follows whitespace, and runs up to the next such
// ordinal.  Text before the first ordinal belongs to no block.
func split(txt string) (blocks []string) {
	var starts []int
	for _, loc := range ordinalRe.FindAllStringIndex(txt, -1) {
		i := loc[0]
		if i > 0 {
			r, _ := utf8.DecodeLastRuneInString(txt[:i])
			if !isSpace(r) {
				continue
			}
		}
		starts = append(starts, i)
	}
	for n, i := range starts {
		j := len(txt)
		if n+1 < len(starts) {
			j = starts[n+1]
		}
		blocks = append(blocks, txt[i:j])
	}
	return
}

// scan returns every citation block found in txt.  Blocks that don't
// fit the grammar are skipped.
func scan(txt string) (citations []Citation) {
	for _, block := range split(txt) {
		m := blockRe.FindStringSubmatch(block)
		if m == nil {
			Debug("skipping citation block: %q", block)
			continue
		}
		citations = append(citations, Citation{
			ID:      m[1],
			Title:   trim(m[2]),
			Content: trim(m[3]),
			URL:     trim(m[4]),
		})
	}
	return
}
