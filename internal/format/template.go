package format

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/olusolaa/hutchlog/internal/record"
)

// Decorator may rewrite the rendered (already padded) text of a field.
type Decorator func(key, rendered string, rec *record.Record) string

type segment struct {
	literal   string
	key       string
	left      bool
	zero      bool
	width     int
	precision int
	conv      byte
}

// Template is a compiled "%(key)-8s" style format string.
type Template struct {
	src      string
	segs     []segment
	usesTime bool
}

// Compile parses src. Placeholders are %(key)[flags][width][.precision]conv
// with flags '-' and '0' and conv one of s, d, i, f, r; "%%" is a literal
// percent sign.
func Compile(src string) (*Template, error) {
	t := &Template{src: src}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segs = append(t.segs, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		if c != '%' {
			lit.WriteByte(c)
			continue
		}
		if i+1 >= len(src) {
			return nil, fmt.Errorf("format %q: dangling '%%' at end", src)
		}
		if src[i+1] == '%' {
			lit.WriteByte('%')
			i++
			continue
		}
		if src[i+1] != '(' {
			return nil, fmt.Errorf("format %q: expected '(' after '%%' at offset %d", src, i)
		}
		end := strings.IndexByte(src[i+2:], ')')
		if end < 0 {
			return nil, fmt.Errorf("format %q: unterminated key at offset %d", src, i)
		}
		seg := segment{key: src[i+2 : i+2+end], precision: -1}
		if seg.key == "" {
			return nil, fmt.Errorf("format %q: empty key at offset %d", src, i)
		}
		j := i + 2 + end + 1
		for ; j < len(src) && (src[j] == '-' || src[j] == '0'); j++ {
			if src[j] == '-' {
				seg.left = true
			} else {
				seg.zero = true
			}
		}
		start := j
		for ; j < len(src) && src[j] >= '0' && src[j] <= '9'; j++ {
		}
		if j > start {
			seg.width, _ = strconv.Atoi(src[start:j])
		}
		if j < len(src) && src[j] == '.' {
			j++
			start = j
			for ; j < len(src) && src[j] >= '0' && src[j] <= '9'; j++ {
			}
			seg.precision, _ = strconv.Atoi(src[start:j])
		}
		if j >= len(src) {
			return nil, fmt.Errorf("format %q: missing conversion for key %q", src, seg.key)
		}
		switch src[j] {
		case 's', 'd', 'i', 'f', 'r':
			seg.conv = src[j]
		default:
			return nil, fmt.Errorf("format %q: unsupported conversion %q for key %q", src, src[j], seg.key)
		}
		if seg.key == "asctime" {
			t.usesTime = true
		}
		flush()
		t.segs = append(t.segs, seg)
		i = j
	}
	flush()
	return t, nil
}

func MustCompile(src string) *Template {
	t, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) String() string { return t.src }

// UsesTime reports whether the template renders asctime.
func (t *Template) UsesTime() bool { return t.usesTime }

// Keys lists the placeholder keys in order of appearance.
func (t *Template) Keys() []string {
	var keys []string
	for _, s := range t.segs {
		if s.key != "" {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// Execute renders rec. Keys that resolve to nothing render as empty text.
func (t *Template) Execute(rec *record.Record, asctime string, decorate Decorator) string {
	var b strings.Builder
	for _, s := range t.segs {
		if s.key == "" {
			b.WriteString(s.literal)
			continue
		}
		v, ok := lookup(rec, s.key, asctime)
		out := s.render(v, ok)
		if decorate != nil {
			out = decorate(s.key, out, rec)
		}
		b.WriteString(out)
	}
	return b.String()
}

func lookup(rec *record.Record, key, asctime string) (any, bool) {
	switch key {
	case "name":
		return rec.Name, true
	case "levelno":
		return int(rec.Level), true
	case "levelname":
		return rec.Level.String(), true
	case "pathname":
		return rec.Pathname, true
	case "filename":
		return rec.Filename(), true
	case "module":
		return rec.Module(), true
	case "lineno":
		return rec.Line, true
	case "funcName":
		return rec.FuncName(), true
	case "created":
		return rec.Created(), true
	case "msecs":
		return rec.Msecs(), true
	case "relativeCreated":
		return rec.RelativeCreated(), true
	case "asctime":
		return asctime, true
	case "process":
		return rec.PID, true
	case "message":
		return rec.Message, true
	}
	return rec.Attr(key)
}

func (s segment) render(v any, ok bool) string {
	var text string
	numeric := false
	if ok && v != nil {
		switch s.conv {
		case 'd', 'i':
			text, numeric = formatInt(v)
		case 'f':
			text, numeric = formatFloat(v, s.precision)
		case 'r':
			if str, isStr := v.(string); isStr {
				text = strconv.Quote(str)
			} else {
				text = fmt.Sprintf("%v", v)
			}
		default:
			text = fmt.Sprint(v)
		}
	}
	if s.conv != 'f' && !numeric && s.precision >= 0 && utf8.RuneCountInString(text) > s.precision {
		text = string([]rune(text)[:s.precision])
	}
	pad := s.width - utf8.RuneCountInString(text)
	if pad <= 0 {
		return text
	}
	if s.left {
		return text + strings.Repeat(" ", pad)
	}
	if s.zero && numeric {
		if strings.HasPrefix(text, "-") {
			return "-" + strings.Repeat("0", pad) + text[1:]
		}
		return strings.Repeat("0", pad) + text
	}
	return strings.Repeat(" ", pad) + text
}

func formatInt(v any) (string, bool) {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint:
		return strconv.FormatUint(uint64(n), 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	case float64:
		return strconv.FormatInt(int64(n), 10), true
	case float32:
		return strconv.FormatInt(int64(n), 10), true
	case fmt.Stringer:
		return n.String(), false
	}
	return fmt.Sprint(v), false
}

func formatFloat(v any, precision int) (string, bool) {
	if precision < 0 {
		precision = 6
	}
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', precision, 64), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', precision, 32), true
	case int:
		return strconv.FormatFloat(float64(n), 'f', precision, 64), true
	case int64:
		return strconv.FormatFloat(float64(n), 'f', precision, 64), true
	}
	return fmt.Sprint(v), false
}
