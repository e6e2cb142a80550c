package decode

import (
	"strings"
	"unicode"
)

// Literal rewrites near-JSON into JSON. It accepts the forms models tend to
// emit when they drift towards Python literal syntax:
//
//   - single-quoted strings
//   - True, False and None
//   - tuples, rewritten as arrays
//   - trailing commas before a closing bracket
//   - bare ... placeholders
//   - invalid backslash escapes inside strings (e.g. regex \d), which are doubled
//   - raw newlines and tabs inside strings
//
// The output is not guaranteed to be valid JSON; callers still parse it strictly.
func Literal(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 16)
	rs := []rune(s)

	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == '"' || c == '\'':
			i = writeString(&sb, rs, i)
		case c == '(':
			sb.WriteByte('[')
		case c == ')':
			sb.WriteByte(']')
		case c == ',':
			if j := skipFiller(rs, i+1); j < len(rs) && (rs[j] == '}' || rs[j] == ']' || rs[j] == ')') {
				continue
			}
			sb.WriteByte(',')
		case c == '.' && i+2 < len(rs) && rs[i+1] == '.' && rs[i+2] == '.':
			i += 2
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			word := string(rs[i:j])
			switch word {
			case "True":
				word = "true"
			case "False":
				word = "false"
			case "None":
				word = "null"
			}
			sb.WriteString(word)
			i = j - 1
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

// writeString copies the string literal starting at rs[start] as a
// double-quoted JSON string and returns the index of its closing quote.
func writeString(sb *strings.Builder, rs []rune, start int) int {
	quote := rs[start]
	sb.WriteByte('"')
	i := start + 1
	for ; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == '\\' && i+1 < len(rs):
			next := rs[i+1]
			switch {
			case next == '\'':
				sb.WriteRune('\'')
			case strings.ContainsRune(`"\/bfnrtu`, next):
				sb.WriteRune('\\')
				sb.WriteRune(next)
			default:
				sb.WriteString(`\\`)
				sb.WriteRune(next)
			}
			i++
		case c == quote:
			sb.WriteByte('"')
			return i
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(c)
		}
	}
	// Unterminated: close it so the strict parse reports the real problem.
	sb.WriteByte('"')
	return i
}

// skipFiller advances past whitespace and ... placeholders.
func skipFiller(rs []rune, i int) int {
	for i < len(rs) {
		switch {
		case unicode.IsSpace(rs[i]):
			i++
		case rs[i] == '.' && i+2 < len(rs) && rs[i+1] == '.' && rs[i+2] == '.':
			i += 3
		default:
			return i
		}
	}
	return i
}
