package docindex

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// ErrSyntax is wrapped by every error returned from Parse.
var ErrSyntax = errors.New("malformed search index")

// SyntaxError locates the offending token, lines and columns start at 1.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

const arrayName = "searchData"

// Parse reads one fragment.
func Parse(r io.Reader) (*Index, error) {
	p := &parser{l: js.NewLexer(parse.NewInput(r)), nextLine: 1, nextCol: 1}
	idx, err := p.index()
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// ParseString is Parse on an in-memory fragment.
func ParseString(s string) (*Index, error) {
	return Parse(strings.NewReader(s))
}

type parser struct {
	l    *js.Lexer
	tt   js.TokenType
	data []byte
	err  error

	line, col         int
	nextLine, nextCol int
}

// next moves to the following significant token.
func (p *parser) next() {
	for {
		p.line, p.col = p.nextLine, p.nextCol
		p.tt, p.data = p.l.Next()
		for _, c := range p.data {
			if c == '\n' {
				p.nextLine++
				p.nextCol = 1
			} else {
				p.nextCol++
			}
		}
		switch p.tt {
		case js.WhitespaceToken, js.LineTerminatorToken, js.CommentToken, js.CommentLineTerminatorToken:
			continue
		case js.ErrorToken:
			if err := p.l.Err(); err != nil && !errors.Is(err, io.EOF) {
				var perr *parse.Error
				if errors.As(err, &perr) {
					p.err = &SyntaxError{Line: perr.Line, Col: perr.Column, Msg: perr.Message}
				} else {
					p.err = p.errorf("%v", err)
				}
			}
		}
		return
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.line, Col: p.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) unexpected(want string) error {
	if p.err != nil {
		return p.err
	}
	if p.tt == js.ErrorToken {
		return p.errorf("unexpected end of input, expected %s", want)
	}
	return p.errorf("unexpected %q, expected %s", p.data, want)
}

// expect consumes a token of the given type.
func (p *parser) expect(tt js.TokenType, want string) error {
	p.next()
	if p.tt != tt {
		return p.unexpected(want)
	}
	return nil
}

func (p *parser) str() (string, error) {
	p.next()
	if p.tt != js.StringToken {
		return "", p.unexpected("string")
	}
	return unquote(p.data), nil
}

func (p *parser) index() (*Index, error) {
	if err := p.expect(js.VarToken, "var"); err != nil {
		return nil, err
	}
	p.next()
	if p.tt != js.IdentifierToken || string(p.data) != arrayName {
		return nil, p.unexpected(arrayName)
	}
	if err := p.expect(js.EqToken, "'='"); err != nil {
		return nil, err
	}
	if err := p.expect(js.OpenBracketToken, "'['"); err != nil {
		return nil, err
	}

	idx := &Index{}
	p.next()
	for p.tt != js.CloseBracketToken {
		if p.tt != js.OpenBracketToken {
			return nil, p.unexpected("entry")
		}
		e, err := p.entry()
		if err != nil {
			return nil, err
		}
		idx.Entries = append(idx.Entries, e)

		p.next()
		switch p.tt {
		case js.CommaToken:
			p.next()
		case js.CloseBracketToken:
		default:
			return nil, p.unexpected("',' or ']'")
		}
	}

	p.next()
	if p.tt == js.SemicolonToken {
		p.next()
	}
	if p.tt != js.ErrorToken || p.err != nil {
		return nil, p.unexpected("end of input")
	}
	return idx, nil
}

// entry parses ['key',['Label',link...]] past its opening bracket.
func (p *parser) entry() (Entry, error) {
	var (
		e   Entry
		err error
	)
	if e.Key, err = p.str(); err != nil {
		return e, err
	}
	if err := p.expect(js.CommaToken, "','"); err != nil {
		return e, err
	}
	if err := p.expect(js.OpenBracketToken, "'['"); err != nil {
		return e, err
	}
	if e.Label, err = p.str(); err != nil {
		return e, err
	}
	for {
		p.next()
		if p.tt == js.CloseBracketToken {
			break
		}
		if p.tt != js.CommaToken {
			return e, p.unexpected("',' or ']'")
		}
		if err := p.expect(js.OpenBracketToken, "link"); err != nil {
			return e, err
		}
		l, err := p.link()
		if err != nil {
			return e, err
		}
		e.Links = append(e.Links, l)
	}
	if len(e.Links) == 0 {
		return e, p.errorf("entry %q has no link", e.Key)
	}
	if err := p.expect(js.CloseBracketToken, "']'"); err != nil {
		return e, err
	}
	return e, nil
}

// link parses ['url',flag,'context'] past its opening bracket.
func (p *parser) link() (Link, error) {
	var (
		l   Link
		err error
	)
	if l.URL, err = p.str(); err != nil {
		return l, err
	}
	if err := p.expect(js.CommaToken, "','"); err != nil {
		return l, err
	}
	p.next()
	if !js.IsNumeric(p.tt) {
		return l, p.unexpected("number")
	}
	if l.Flag, err = strconv.Atoi(string(p.data)); err != nil {
		return l, p.errorf("bad link flag %q", p.data)
	}
	if err := p.expect(js.CommaToken, "','"); err != nil {
		return l, err
	}
	if l.Context, err = p.str(); err != nil {
		return l, err
	}
	if err := p.expect(js.CloseBracketToken, "']'"); err != nil {
		return l, err
	}
	return l, nil
}

// unquote strips quotes of a string token and resolves javascript escapes.
// Malformed numeric escapes are kept as written.
func unquote(tok []byte) string {
	s := string(tok[1 : len(tok)-1])
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			sb.WriteByte(c)
			continue
		}
		i++
		switch c = s[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '0':
			sb.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case 'x':
			if r, n := hexRune(s[i+1:], 2); n > 0 {
				sb.WriteRune(r)
				i += n
			} else {
				sb.WriteString(`\x`)
			}
		case 'u':
			r, n := unicodeEscape(s[i+1:])
			if n == 0 {
				sb.WriteString(`\u`)
				continue
			}
			i += n
			// surrogate pair written as two escapes
			if utf16.IsSurrogate(r) && strings.HasPrefix(s[i+1:], `\u`) {
				if r2, n2 := unicodeEscape(s[i+3:]); n2 > 0 {
					if pair := utf16.DecodeRune(r, r2); pair != utf8.RuneError {
						r = pair
						i += 2 + n2
					}
				}
			}
			sb.WriteRune(r)
		default:
			// U+2028 and U+2029 continue lines as well
			if r, n := utf8.DecodeRuneInString(s[i:]); r == '\u2028' || r == '\u2029' {
				i += n - 1
				continue
			}
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// hexRune reads exactly n hex digits.
func hexRune(s string, n int) (rune, int) {
	if len(s) < n {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[:n], 16, 32)
	if err != nil {
		return 0, 0
	}
	return rune(v), n
}

// unicodeEscape reads what follows \u: four hex digits or a braced code
// point. It returns the number of bytes consumed, zero when malformed.
func unicodeEscape(s string) (rune, int) {
	if !strings.HasPrefix(s, "{") {
		return hexRune(s, 4)
	}
	end := strings.IndexByte(s, '}')
	if end < 2 {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[1:end], 16, 32)
	if err != nil || v > unicode.MaxRune {
		return 0, 0
	}
	return rune(v), end + 1
}
