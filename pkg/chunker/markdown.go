package chunker

import "strings"

// approximate characters per page, used when the parser gives no page
// numbers and pages have to be estimated from the markdown offset
const charsPerPage = 3000

// chunkMarkdown segments a markdown rendition by headings. Page numbers are
// estimated from the character offset of each section. Sections below the
// minimum are merged into their successor; sections above the target are
// window-split.
func (c *Chunker) chunkMarkdown(markdown string) []rawChunk {
	sections := splitMarkdownSections(markdown)

	var chunks []rawChunk
	var carry mdSection
	for _, sec := range sections {
		if carry.text != "" {
			sec.text = carry.text + "\n\n" + sec.text
			sec.offset = carry.offset
			if sec.title == "" {
				sec.title = carry.title
			}
			carry = mdSection{}
		}

		tokens := c.CountTokens(sec.text)
		switch {
		case tokens < c.cfg.MinTokens:
			carry = sec
		case tokens > c.cfg.TargetTokens:
			for _, w := range c.chunkWindows(sec.text) {
				w.page = sec.offset/charsPerPage + 1
				w.section = sec.title
				chunks = append(chunks, w)
			}
		default:
			chunks = append(chunks, rawChunk{
				text:    sec.text,
				tokens:  tokens,
				page:    sec.offset/charsPerPage + 1,
				section: sec.title,
			})
		}
	}
	if carry.text != "" {
		chunks = append(chunks, rawChunk{
			text:    carry.text,
			tokens:  c.CountTokens(carry.text),
			page:    carry.offset/charsPerPage + 1,
			section: carry.title,
		})
	}

	return chunks
}

type mdSection struct {
	title  string
	text   string
	offset int
}

// splitMarkdownSections breaks markdown at heading lines, keeping the
// heading line inside its section. The offset is the byte position of the
// section start in the original markdown.
func splitMarkdownSections(markdown string) []mdSection {
	lines := strings.Split(markdown, "\n")

	var sections []mdSection
	var cur mdSection
	var buf []string
	offset := 0

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if text != "" {
			cur.text = text
			sections = append(sections, cur)
		}
		buf = nil
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			flush()
			cur = mdSection{
				title:  strings.TrimSpace(strings.TrimLeft(line, "# ")),
				offset: offset,
			}
		}
		buf = append(buf, line)
		offset += len(line) + 1
	}
	flush()

	return sections
}
