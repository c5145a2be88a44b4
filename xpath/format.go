package xpath

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/midbel/xquery/xdm"
)

const codeFormat = "FODF1310"

func fnFormatInteger(ctx Context, args []*Sequence) (*Sequence, error) {
	return atomics(ctx, args, func(values []*xdm.Value) (*Sequence, error) {
		if values[0] == nil {
			return stringSeq(""), nil
		}
		v := *values[0]
		if !xdm.InstanceOf(v.Type, xdm.Integer) {
			return nil, typeError("fn:format-integer expects an integer, got %s", v.Type)
		}
		d, _ := v.Decimal()
		str, err := formatInteger(d.IntPart(), stringOf(values[1]))
		if err != nil {
			return nil, xdm.Wrap(codeFormat, err)
		}
		return stringSeq(str), nil
	}), nil
}

// formatInteger formats value with a decimal digit pattern like "#,##0" or
// "0000". An optional radix prefix "16^" changes the base of the digits.
func formatInteger(value int64, picture string) (string, error) {
	radix := 10
	if rx, rest, ok := strings.Cut(picture, "^"); ok {
		picture = rest
		switch rx {
		case "2", "8", "10", "16":
			radix, _ = strconv.Atoi(rx)
		default:
			return "", fmt.Errorf("%s: unsupported radix", rx)
		}
	}
	if picture == "" {
		return "", fmt.Errorf("empty picture")
	}
	negative := value < 0
	if negative {
		value = -value
	}
	var (
		chars = []byte(strconv.FormatInt(value, radix))
		out   bytes.Buffer
		ptr   int
		grp   byte
		prev  byte
	)
	slices.Reverse(chars)
	for i := len(picture) - 1; i >= 0; i-- {
		switch c := picture[i]; c {
		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '#':
			if ptr >= len(chars) {
				if c != '#' {
					out.WriteByte('0')
				}
			} else {
				out.WriteByte(chars[ptr])
			}
			ptr++
		case '.', ',':
			if grp != 0 && c != grp {
				return "", fmt.Errorf("inconsistent use of grouping separator")
			}
			if prev == c {
				return "", fmt.Errorf("consecutive grouping separators")
			}
			grp = c
			if ptr < len(chars) || picture[0] != '#' {
				out.WriteByte(c)
			}
		default:
			return "", fmt.Errorf("%c: unexpected character in picture", c)
		}
		prev = picture[i]
	}
	for _, c := range chars[min(ptr, len(chars)):] {
		if grp != 0 && ptr%3 == 0 {
			out.WriteByte(grp)
		}
		out.WriteByte(c)
		ptr++
	}
	if negative {
		out.WriteByte('-')
	}
	res := out.Bytes()
	slices.Reverse(res)
	return strings.TrimLeft(string(res), ".,"), nil
}
