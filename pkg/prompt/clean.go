package prompt

import (
	"strings"
	"unicode"
)

const tabSize = 8

// Clean normalizes a doc comment into template source.
//
// The common indentation is removed and leading and trailing blank lines are
// dropped. If the raw text (ignoring spaces) ended with a blank line, a single
// trailing newline is kept. Finally every whitespace run that follows a word
// character is collapsed into one space, unless the run starts with a line
// break. Indentation at the start of a line is therefore preserved, while
// line continuations do not leave stray spaces behind.
func Clean(doc string) string {
	cleaned := cleandoc(doc)

	if strings.HasSuffix(strings.ReplaceAll(doc, " ", ""), "\n\n") {
		cleaned += "\n"
	}

	return collapseSpaces(cleaned)
}

func cleandoc(doc string) string {
	lines := strings.Split(expandTabs(doc), "\n")

	// Minimum indentation of the non-blank lines after the first one
	margin := -1
	for _, line := range lines[1:] {
		content := strings.TrimLeft(line, " ")
		if content == "" {
			continue
		}
		if indent := len(line) - len(content); margin < 0 || indent < margin {
			margin = indent
		}
	}

	lines[0] = strings.TrimLeft(lines[0], " ")
	if margin > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) <= margin {
				lines[i] = ""
			} else {
				lines[i] = lines[i][margin:]
			}
		}
	}

	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}

	return strings.Join(lines, "\n")
}

// expandTabs replaces tabs with spaces up to the next multiple of tabSize.
// Columns restart after \n and \r.
func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	column := 0
	for _, r := range s {
		switch r {
		case '\t':
			n := tabSize - column%tabSize
			b.WriteString(strings.Repeat(" ", n))
			column += n
		case '\n', '\r':
			b.WriteRune(r)
			column = 0
		default:
			b.WriteRune(r)
			column++
		}
	}
	return b.String()
}

// collapseSpaces replaces each whitespace run preceded by a word character
// with a single space. Runs starting with \r or \n are left alone.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	for i := 0; i < len(runes); {
		r := runes[i]
		if isSpace(r) && r != '\n' && r != '\r' && i > 0 && isWord(runes[i-1]) {
			j := i
			for j < len(runes) && isSpace(runes[j]) {
				j++
			}
			b.WriteByte(' ')
			i = j
			continue
		}
		b.WriteRune(r)
		i++
	}

	return b.String()
}

func isSpace(r rune) bool {
	// Information separators U+001C..U+001F count as whitespace too
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
