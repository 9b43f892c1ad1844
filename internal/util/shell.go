// Package util provides common utility functions used across the codebase.
package util

import "strings"

// ShellQuote wraps a string in single quotes, escaping any existing single quotes.
// This is safe for use in shell commands where the string should be treated literally.
func ShellQuote(s string) string {
	// Replace ' with '\'' (end quote, escaped quote, start quote)
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// ShellQuotePreserveTilde quotes a remote path while keeping a leading ~/ unquoted
// so the remote shell still expands it.
func ShellQuotePreserveTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		return "~/" + ShellQuote(path[2:])
	}
	if path == "~" {
		return "~"
	}
	return ShellQuote(path)
}

// safeShellChars are bytes that never need quoting in a POSIX shell word.
const safeShellChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_./=:,@%+"

// QuoteIfNeeded returns s unchanged when it is a plain shell word, otherwise ShellQuote(s).
func QuoteIfNeeded(s string) string {
	if s == "" {
		return "''"
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(safeShellChars, rune(s[i])) {
			return ShellQuote(s)
		}
	}
	return s
}

// ShellJoin renders args as one shell command line, quoting only where required.
// rsync's -e value is built with it so ssh options containing spaces survive.
func ShellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = QuoteIfNeeded(a)
	}
	return strings.Join(quoted, " ")
}
