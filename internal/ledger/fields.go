package ledger

import (
	"regexp"
	"strings"
)

// Field is one whitespace-delimited word of a line. Quoted strings form a
// single field including their quotes. Start and End are byte offsets into
// the line.
type Field struct {
	Text         string
	Start        int
	End          int
	Unterminated bool
}

func (f Field) Quoted() bool {
	return strings.HasPrefix(f.Text, `"`)
}

// Unquote strips the surrounding quotes of a string field.
func (f Field) Unquote() string {
	s := strings.TrimPrefix(f.Text, `"`)
	if !f.Unterminated {
		s = strings.TrimSuffix(s, `"`)
	}
	return strings.ReplaceAll(s, `\"`, `"`)
}

// SplitFields splits a line into fields and returns the byte offset of a
// trailing ';' comment, or -1 when there is none.
func SplitFields(line string) ([]Field, int) {
	var fields []Field
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == ';':
			return fields, i
		case c == '"':
			start := i
			i++
			for i < len(line) && line[i] != '"' {
				if line[i] == '\\' && i+1 < len(line) {
					i++
				}
				i++
			}
			if i >= len(line) {
				fields = append(fields, Field{Text: line[start:], Start: start, End: len(line), Unterminated: true})
				return fields, -1
			}
			i++
			fields = append(fields, Field{Text: line[start:i], Start: start, End: i})
		default:
			start := i
			for i < len(line) && !strings.ContainsRune(" \t\r;\"", rune(line[i])) {
				i++
			}
			fields = append(fields, Field{Text: line[start:i], Start: start, End: i})
		}
	}
	return fields, -1
}

var (
	dateRe     = regexp.MustCompile(`^\d{4}[-/]\d{2}[-/]\d{2}$`)
	accountRe  = regexp.MustCompile(`^\p{Lu}[\p{L}\p{N}-]*(:[\p{Lu}\p{N}][\p{L}\p{N}-]*)+$`)
	currencyRe = regexp.MustCompile(`^[A-Z][A-Z0-9'._-]{0,22}[A-Z0-9]$|^[A-Z]$`)
	numberRe   = regexp.MustCompile(`^[-+]?(\d+|\d{1,3}(,\d{3})+)?(\.\d*)?$`)
	flagRe     = regexp.MustCompile(`^([*!&#?%]|[PSTCURM]|txn)$`)
)

func IsAccount(s string) bool {
	return accountRe.MatchString(s)
}

func IsCurrency(s string) bool {
	return currencyRe.MatchString(s)
}

func IsNumber(s string) bool {
	return numberRe.MatchString(s) && strings.ContainsAny(s, "0123456789")
}

func isFlag(s string) bool {
	return flagRe.MatchString(s)
}
