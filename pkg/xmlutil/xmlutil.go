// Package xmlutil builds XML-delimited prompt sections with escaped content.
package xmlutil

import (
	"encoding/xml"
	"strings"
)

// Escape replaces characters with special meaning in XML so embedded content
// cannot close or open tags in an XML-delimited template.
func Escape(s string) string {
	var buf strings.Builder
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		// EscapeText only fails on invalid UTF-8; return original on error.
		return s
	}
	return buf.String()
}

// Tag wraps escaped content in <name>...</name>. Multi-line content is placed
// on its own lines.
func Tag(name, content string) string {
	if !strings.Contains(content, "\n") {
		return "<" + name + ">" + Escape(content) + "</" + name + ">"
	}
	// EscapeText encodes newlines, so escape line by line.
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for i, l := range lines {
		lines[i] = Escape(l)
	}
	return "<" + name + ">\n" + strings.Join(lines, "\n") + "\n</" + name + ">"
}

// Lines wraps each item in <item> tags inside a <name> block.
func Lines(name string, items []string) string {
	var sb strings.Builder
	sb.WriteString("<" + name + ">\n")
	for _, it := range items {
		sb.WriteString(Tag("item", it))
		sb.WriteByte('\n')
	}
	sb.WriteString("</" + name + ">")
	return sb.String()
}
