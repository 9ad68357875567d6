package util

import (
	"bytes"
	"fmt"
	"strings"
)

// GetLineAndColumn converts a byte offset into a 1-based line and column.
func GetLineAndColumn(src string, pos int) (line int, column int) {
	line = 1
	column = 1
	for i, char := range src {
		if i >= pos {
			break
		}
		if char == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return
}

// GetContextLines renders up to two lines before errorLine plus the error
// line itself, with a caret under errorCol.
func GetContextLines(src string, errorLine, errorCol int) string {
	var result bytes.Buffer
	lines := strings.Split(src, "\n")

	startLine := errorLine - 2
	if startLine < 1 {
		startLine = 1
	}

	for i := startLine; i <= errorLine && i <= len(lines); i++ {
		lineContent := lines[i-1]
		if i != errorLine {
			result.WriteString(fmt.Sprintf("     %3d | %s\n", i, lineContent))
			continue
		}
		margin := fmt.Sprintf("  >  %3d | ", i)
		result.WriteString(fmt.Sprintf("%s%s\n", margin, lineContent))
		col := errorCol - 1
		if col > len(lineContent) {
			col = len(lineContent)
		}
		if col < 0 {
			col = 0
		}
		result.WriteString(replaceVisibleWithSpaces(margin+lineContent[:col]) + "^ unexpected here")
	}

	return result.String()
}

// replaceVisibleWithSpaces replaces all non-whitespace characters with spaces
// while preserving tabs for correct alignment.
func replaceVisibleWithSpaces(s string) string {
	var buf bytes.Buffer
	for _, c := range s {
		if c == '\t' {
			buf.WriteRune('\t')
		} else {
			buf.WriteRune(' ')
		}
	}
	return buf.String()
}
