package rag

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

var disablePDFConfig sync.Once

// loadPDF returns one document per page that carries text.
func loadPDF(path string) ([]Document, error) {
	// pdfcpu otherwise writes a configuration directory under the user's home
	disablePDFConfig.Do(api.DisableConfigDir)

	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}

	var docs []Document
	for page := 1; page <= ctx.PageCount; page++ {
		r, err := pdfcpu.ExtractPageContent(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if text := contentText(content); text != "" {
			docs = append(docs, Document{Source: path, Page: page, Text: text})
		}
	}
	return docs, nil
}

// operand is one value on the content stream operand stack.
type operand struct {
	str   string
	isStr bool
	num   float64
	isNum bool
	arr   []operand
	isArr bool
}

// contentText pulls the strings shown by text operators (Tj, TJ, ' and ")
// out of a page content stream. Text positioning that moves to a new line
// becomes a newline; large negative TJ kerning becomes a space.
func contentText(content []byte) string {
	var b strings.Builder
	var stack []operand
	var arrays [][]operand

	push := func(op operand) {
		if n := len(arrays); n > 0 {
			arrays[n-1] = append(arrays[n-1], op)
			return
		}
		stack = append(stack, op)
	}
	lastString := func() (string, bool) {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].isStr {
				return stack[i].str, true
			}
		}
		return "", false
	}
	newline := func() {
		if s := b.String(); s != "" && !strings.HasSuffix(s, "\n") {
			b.WriteString("\n")
		}
	}

	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := readLiteral(content, i)
			push(operand{str: s, isStr: true})
			i = next
		case c == '<' && i+1 < len(content) && content[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(content) && content[i+1] == '>':
			i += 2
		case c == '<':
			s, next := readHex(content, i)
			push(operand{str: s, isStr: true})
			i = next
		case c == '[':
			arrays = append(arrays, nil)
			i++
		case c == ']':
			if n := len(arrays); n > 0 {
				arr := arrays[n-1]
				arrays = arrays[:n-1]
				push(operand{arr: arr, isArr: true})
			}
			i++
		case c == '/':
			j := i + 1
			for j < len(content) && !isPDFSpace(content[j]) && !isPDFDelimiter(content[j]) {
				j++
			}
			push(operand{})
			i = j
		default:
			j := i
			for j < len(content) && !isPDFSpace(content[j]) && !isPDFDelimiter(content[j]) {
				j++
			}
			if j == i {
				i++
				continue
			}
			word := string(content[i:j])
			i = j

			if n, err := strconv.ParseFloat(word, 64); err == nil {
				push(operand{num: n, isNum: true})
				continue
			}

			switch word {
			case "Tj":
				if s, ok := lastString(); ok {
					b.WriteString(s)
				}
			case "'", "\"":
				newline()
				if s, ok := lastString(); ok {
					b.WriteString(s)
				}
			case "TJ":
				if n := len(stack); n > 0 && stack[n-1].isArr {
					for _, op := range stack[n-1].arr {
						switch {
						case op.isStr:
							b.WriteString(op.str)
						case op.isNum && op.num < -200:
							b.WriteString(" ")
						}
					}
				}
			case "Td", "TD":
				if n := len(stack); n >= 1 && stack[n-1].isNum && stack[n-1].num != 0 {
					newline()
				} else {
					b.WriteString(" ")
				}
			case "T*", "ET":
				newline()
			case "ID":
				// inline image data runs until EI
				if k := strings.Index(string(content[i:]), "EI"); k >= 0 {
					i += k + 2
				} else {
					i = len(content)
				}
			}
			stack = stack[:0]
		}
	}
	return normalizeText(b.String())
}

func readLiteral(content []byte, start int) (string, int) {
	var b strings.Builder
	depth := 0
	i := start
	for i < len(content) {
		c := content[i]
		switch c {
		case '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
		case '\\':
			i++
			if i >= len(content) {
				return b.String(), i
			}
			e := content[i]
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case '\r', '\n':
				if e == '\r' && i+1 < len(content) && content[i+1] == '\n' {
					i++
				}
			default:
				if e >= '0' && e <= '7' {
					v := 0
					k := 0
					for k < 3 && i < len(content) && content[i] >= '0' && content[i] <= '7' {
						v = v*8 + int(content[i]-'0')
						i++
						k++
					}
					i--
					b.WriteByte(byte(v))
				} else {
					b.WriteByte(e)
				}
			}
		default:
			b.WriteByte(c)
		}
		i++
	}
	return b.String(), i
}

func readHex(content []byte, start int) (string, int) {
	var digits []byte
	i := start + 1
	for i < len(content) && content[i] != '>' {
		if c := content[i]; !isPDFSpace(c) {
			digits = append(digits, c)
		}
		i++
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for k := 0; k+1 < len(digits); k += 2 {
		v, err := strconv.ParseUint(string(digits[k:k+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return string(out), i + 1
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
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

// normalizeText collapses runs of spaces and drops blank lines.
func normalizeText(s string) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
