package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// normalizeJSONC turns JSONC into plain JSON by overwriting comments and
// trailing commas with spaces. Newlines and byte offsets are preserved, so
// decoder offsets still point into the original text.
func normalizeJSONC(src string) (string, error) {
	const (
		inCode = iota
		inString
		inEscape
		inLineComment
		inBlockComment
	)

	out := []byte(src)
	state := inCode
	pendingComma := -1

	for i := 0; i < len(out); i++ {
		c := out[i]
		switch state {
		case inString:
			switch c {
			case '\\':
				state = inEscape
			case '"':
				state = inCode
			}
		case inEscape:
			state = inString
		case inLineComment:
			if c == '\n' || c == '\r' {
				state = inCode
			} else {
				out[i] = ' '
			}
		case inBlockComment:
			if c == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				state = inCode
			} else if !isJSONSpace(c) {
				out[i] = ' '
			}
		default:
			switch {
			case c == '/' && i+1 < len(out) && (out[i+1] == '/' || out[i+1] == '*'):
				state = inLineComment
				if out[i+1] == '*' {
					state = inBlockComment
				}
				out[i], out[i+1] = ' ', ' '
				i++
			case c == ',':
				pendingComma = i
			case c == '}' || c == ']':
				if pendingComma >= 0 {
					out[pendingComma] = ' '
				}
				pendingComma = -1
			case c == '"':
				state = inString
				pendingComma = -1
			case isJSONSpace(c):
			default:
				pendingComma = -1
			}
		}
	}

	if state == inBlockComment {
		return "", errors.New("unterminated block comment in JSONC")
	}
	return string(out), nil
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// ensureSingleJSONValue fails when anything but whitespace follows the first
// decoded value.
func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	}
	return errors.New("multiple JSON values are not allowed")
}

// withPosition prefixes decoder errors that carry an offset with the line and
// column it points at.
func withPosition(content string, err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		offset    int64
	)
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// offsetToLineCol converts a decoder offset (bytes consumed) to the 1-based
// line and column of the last consumed byte.
func offsetToLineCol(content string, offset int64) (int, int) {
	end := max(min(int(offset), len(content))-1, 0)
	before := content[:end]
	line := strings.Count(before, "\n") + 1
	col := end - (strings.LastIndexByte(before, '\n') + 1) + 1
	return line, col
}
