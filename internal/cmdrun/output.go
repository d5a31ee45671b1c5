package cmdrun

import "strings"

// LastNonEmptyLine returns the final line of output that is not blank, trimmed.
func LastNonEmptyLine(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// HasFailurePrefix reports whether the last non-empty line of output starts
// with prefix, returning that line.
func HasFailurePrefix(output, prefix string) (string, bool) {
	line := LastNonEmptyLine(output)
	if line == "" || prefix == "" {
		return line, false
	}
	return line, strings.HasPrefix(line, prefix)
}
