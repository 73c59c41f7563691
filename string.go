package jconv

import (
	"unicode/utf16"
	"unicode/utf8"
)

// ReadString decodes the string at the current token, which must be '"'.
// Standard escapes and \uXXXX escapes, including surrogate pairs, are
// decoded.  Unpaired surrogates become U+FFFD.  Raw control characters and
// invalid UTF-8 are errors.
func (r *Reader) ReadString() (string, error) {
	if r.last != '"' || !r.atTokenStart() {
		return "", r.Expecting("string")
	}
	b, err := r.readStringBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadKey reads an object key at the current token along with the name
// separator that follows it, and advances to the first token of the value.
func (r *Reader) ReadKey() (string, error) {
	return r.readKey(nil)
}

// readKey is ReadKey with an optional cache used to share key strings.
func (r *Reader) readKey(cache *KeyCache) (string, error) {
	if r.last != '"' || !r.atTokenStart() {
		return "", r.Expecting("key")
	}
	b, err := r.readStringBytes()
	if err != nil {
		return "", err
	}

	var key string
	if cache != nil {
		key = cache.Key(hashKey(b), b)
	} else {
		key = string(b)
	}

	ch, err := r.NextToken()
	if err != nil {
		return "", err
	}
	if ch != NameSeparator {
		return "", r.Expecting("':'")
	}
	if _, err := r.NextToken(); err != nil {
		return "", err
	}
	return key, nil
}

// readStringBytes reads string content after the opening quote through the
// closing quote.  The result aliases the reader's buffers and is only valid
// until the next read.
func (r *Reader) readStringBytes() ([]byte, error) {
	start := r.pos
	high := false
	for i := start; i < r.length; i++ {
		ch := r.buf[i]
		switch {
		case ch == '"':
			b := r.buf[start:i]
			if high && !utf8.Valid(b) {
				return nil, r.parseErrorAt(KindEncoding, r.shifted+int64(start), '"', "invalid UTF-8 in string")
			}
			r.pos = i + 1
			return b, nil
		case ch == '\\' || ch < 0x20:
			r.scratch = append(r.scratch[:0], r.buf[start:i]...)
			r.pos = i
			return r.readStringSlow()
		case ch >= utf8.RuneSelf:
			high = true
		}
	}
	r.scratch = append(r.scratch[:0], r.buf[start:r.length]...)
	r.pos = r.length
	return r.readStringSlow()
}

// readStringSlow continues a string into the scratch buffer, decoding
// escapes and pulling more input from the stream as needed.
func (r *Reader) readStringSlow() ([]byte, error) {
	start := r.shifted + int64(r.tokenStart)
	for {
		if r.pos >= r.length {
			r.tokenStart = r.pos
			if !r.fill(1) {
				return nil, r.eofError()
			}
		}

		ch := r.buf[r.pos]
		switch {
		case ch == '"':
			r.pos++
			if !utf8.Valid(r.scratch) {
				return nil, r.parseErrorAt(KindEncoding, start, '"', "invalid UTF-8 in string")
			}
			return r.scratch, nil
		case ch == '\\':
			if err := r.readEscape(); err != nil {
				return nil, err
			}
		case ch < 0x20:
			return nil, r.parseError(KindEncoding, ch, "control character in string")
		default:
			j := r.pos
			for j < r.length {
				c := r.buf[j]
				if c == '"' || c == '\\' || c < 0x20 {
					break
				}
				j++
			}
			r.scratch = append(r.scratch, r.buf[r.pos:j]...)
			r.pos = j
		}
	}
}

func (r *Reader) readEscape() error {
	r.tokenStart = r.pos
	if !r.fill(2) {
		return r.eofError()
	}
	esc := r.buf[r.pos+1]
	switch esc {
	case '"', '\\', '/':
		r.scratch = append(r.scratch, esc)
	case 'b':
		r.scratch = append(r.scratch, '\b')
	case 'f':
		r.scratch = append(r.scratch, '\f')
	case 'n':
		r.scratch = append(r.scratch, '\n')
	case 'r':
		r.scratch = append(r.scratch, '\r')
	case 't':
		r.scratch = append(r.scratch, '\t')
	case 'u':
		return r.readUnicodeEscape()
	default:
		r.pos++
		return r.parseError(KindEscape, esc, "unknown escape")
	}
	r.pos += 2
	return nil
}

func (r *Reader) readUnicodeEscape() error {
	if !r.fill(6) {
		return r.eofError()
	}
	cp, ok := hex4(r.buf[r.pos+2 : r.pos+6])
	if !ok {
		r.pos++
		return r.parseError(KindEscape, 'u', "converting unicode escape")
	}
	r.pos += 6

	if utf16.IsSurrogate(cp) {
		rn := utf8.RuneError
		r.tokenStart = r.pos
		if cp < 0xDC00 && r.fill(6) && r.buf[r.pos] == '\\' && r.buf[r.pos+1] == 'u' {
			if lo, ok := hex4(r.buf[r.pos+2 : r.pos+6]); ok && lo >= 0xDC00 && lo <= 0xDFFF {
				rn = utf16.DecodeRune(cp, lo)
				r.pos += 6
			}
		}
		cp = rn
	}
	r.scratch = utf8.AppendRune(r.scratch, cp)
	return nil
}

func hex4(b []byte) (rune, bool) {
	var n rune
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9':
			c -= '0'
		case c >= 'a' && c <= 'f':
			c = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			c = c - 'A' + 10
		default:
			return 0, false
		}
		n = n<<4 | rune(c)
	}
	return n, true
}

const hexDigits = "0123456789abcdef"

// WriteString writes s as a quoted JSON string.  Quotes, backslashes and
// control characters are escaped; all other bytes are written as is.
func (w *Writer) WriteString(s string) {
	b := append(w.buf, Quote)
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		b = append(b, s[start:i]...)
		switch c {
		case '"', '\\':
			b = append(b, '\\', c)
		case '\b':
			b = append(b, '\\', 'b')
		case '\f':
			b = append(b, '\\', 'f')
		case '\n':
			b = append(b, '\\', 'n')
		case '\r':
			b = append(b, '\\', 'r')
		case '\t':
			b = append(b, '\\', 't')
		default:
			b = append(b, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF])
		}
		start = i + 1
	}
	b = append(b, s[start:]...)
	w.buf = append(b, Quote)
}
