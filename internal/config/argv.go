package config

import (
	"errors"
	"strings"
	"unicode"
)

var (
	errOpenQuote  = errors.New("unterminated quote")
	errOpenEscape = errors.New("unterminated escape")
)

// splitCommand breaks a shell-like command line into argv. It understands
// single and double quotes and backslash escapes but performs no expansion.
// A line starting with "#" is treated as commented out.
func splitCommand(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return nil, nil
	}

	var (
		argv  []string
		word  strings.Builder
		inArg bool
		quote rune
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && quote != '\'':
			if i+1 == len(runes) {
				return nil, errOpenEscape
			}
			i++
			word.WriteRune(runes[i])
			inArg = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				word.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inArg = true
		case unicode.IsSpace(r):
			if inArg {
				argv = append(argv, word.String())
				word.Reset()
				inArg = false
			}
		default:
			word.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errOpenQuote
	}
	if inArg {
		argv = append(argv, word.String())
	}
	return argv, nil
}
