package services

import (
	"strconv"
	"strings"
)

// TJ offsets below this (in thousandths of an em) read as a word gap.
const tjWordGap = -200

// contentStreamText pulls the shown strings out of a PDF page content stream.
// Only text inside BT/ET blocks is kept; Tj, TJ, ' and " show text, and
// vertical Td/TD moves, T* and Tm start a new line.
func contentStreamText(stream []byte) string {
	var (
		out     strings.Builder
		line    strings.Builder
		strs    []string
		nums    []float64
		inText  bool
		inArray bool
	)
	newline := func() {
		if s := strings.Join(strings.Fields(line.String()), " "); s != "" {
			out.WriteString(s)
			out.WriteByte('\n')
		}
		line.Reset()
	}
	show := func() {
		if inText {
			line.WriteString(strings.Join(strs, ""))
		}
	}

	for i := 0; i < len(stream); {
		c := stream[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
		case c == '(':
			s, n := readPDFLiteral(stream[i:])
			strs = append(strs, s)
			i += n
		case c == '<' && i+1 < len(stream) && stream[i+1] == '<', c == '>' && i+1 < len(stream) && stream[i+1] == '>':
			i += 2
		case c == '<':
			end := i + 1
			for end < len(stream) && stream[end] != '>' {
				end++
			}
			strs = append(strs, decodePDFHex(stream[i+1:min(end, len(stream))]))
			i = end + 1
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '/':
			i++
			for i < len(stream) && !isPDFSpace(stream[i]) && !isPDFDelimiter(stream[i]) {
				i++
			}
		default:
			start := i
			for i < len(stream) && !isPDFSpace(stream[i]) && !isPDFDelimiter(stream[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			tok := string(stream[start:i])
			if v, err := strconv.ParseFloat(tok, 64); err == nil {
				if inArray && v < tjWordGap {
					strs = append(strs, " ")
				}
				nums = append(nums, v)
				continue
			}

			switch tok {
			case "BT":
				inText = true
			case "ET":
				newline()
				inText = false
			case "Tj", "TJ":
				show()
			case "'", "\"":
				newline()
				show()
			case "Td", "TD":
				if len(nums) >= 2 && nums[len(nums)-1] != 0 {
					newline()
				} else {
					line.WriteByte(' ')
				}
			case "T*", "Tm":
				newline()
			}
			strs, nums = nil, nil
		}
	}
	newline()
	return strings.TrimSpace(out.String())
}

// readPDFLiteral decodes a (...) string starting at b[0] and returns it with
// the number of bytes consumed. Bytes above 0x7f are read as Latin-1.
func readPDFLiteral(b []byte) (string, int) {
	var sb strings.Builder
	depth := 0
	i := 0
	for i < len(b) {
		c := b[i]
		switch c {
		case '(':
			depth++
			if depth > 1 {
				sb.WriteByte('(')
			}
			i++
		case ')':
			depth--
			i++
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(')')
		case '\\':
			i++
			if i >= len(b) {
				return sb.String(), i
			}
			e := b[i]
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r':
				if i+1 < len(b) && b[i+1] == '\n' {
					i++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v, n := 0, 0
					for n < 3 && i < len(b) && b[i] >= '0' && b[i] <= '7' {
						v = v*8 + int(b[i]-'0')
						i++
						n++
					}
					sb.WriteRune(rune(byte(v)))
					continue
				}
				sb.WriteRune(rune(e))
			}
			i++
		default:
			sb.WriteRune(rune(c))
			i++
		}
	}
	return sb.String(), i
}

// decodePDFHex keeps the printable bytes of a <...> string; two-byte glyph
// ids from CID fonts carry no readable text and drop out.
func decodePDFHex(h []byte) string {
	digits := make([]byte, 0, len(h))
	for _, c := range h {
		if !isPDFSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	var sb strings.Builder
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return ""
		}
		if v == ' ' || (v > 0x20 && v < 0x7f) {
			sb.WriteByte(byte(v))
		}
	}
	return sb.String()
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
