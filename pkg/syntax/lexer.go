package syntax

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/lemonberrylabs/cfpl/pkg/types"
)

// Lexer tokenizes CFPL source text.
type Lexer struct {
	input []rune
	pos   int
	line  int
	col   int

	// firstInLine stays true until the first non-whitespace character of
	// the current line has been seen.
	firstInLine bool

	tokens []Token
	blocks []Token // open START tokens
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:       []rune(input),
		line:        1,
		col:         1,
		firstInLine: true,
	}
}

// Tokenize scans the entire input and returns all tokens. The stream always
// ends with a single EOF token.
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\n' {
			if !l.firstInLine {
				l.emit(TokenEOL, "EOL", types.Null, l.position())
			}
			l.firstInLine = true
			l.advance()
			continue
		}
		if unicode.IsSpace(ch) {
			l.advance()
			continue
		}
		if ch == '*' && l.firstInLine {
			l.skipComment()
			continue
		}
		if err := l.next(); err != nil {
			return nil, err
		}
		l.firstInLine = false
	}

	if !l.firstInLine {
		l.emit(TokenEOL, "EOL", types.Null, l.position())
	}
	if len(l.blocks) > 0 {
		open := l.blocks[len(l.blocks)-1]
		return nil, types.NewLexError(open.Pos, open.Lexeme, "'START' is missing 'STOP'.")
	}
	l.emit(TokenEOF, "EOF", types.Null, l.position())
	return l.tokens, nil
}

// next scans one token starting at the current, non-blank character.
func (l *Lexer) next() error {
	start := l.position()
	ch := l.input[l.pos]

	// Two-character operators
	switch ch {
	case '=':
		if l.peek(1) == '=' {
			l.advanceN(2)
			l.emit(TokenEq, "==", types.Null, start)
			return nil
		}
	case '<':
		switch l.peek(1) {
		case '=':
			l.advanceN(2)
			l.emit(TokenLe, "<=", types.Null, start)
			return nil
		case '>':
			l.advanceN(2)
			l.emit(TokenNe, "<>", types.Null, start)
			return nil
		}
	case '>':
		if l.peek(1) == '=' {
			l.advanceN(2)
			l.emit(TokenGe, ">=", types.Null, start)
			return nil
		}
	}

	// Single-character operators
	if tt, ok := singleChar[ch]; ok {
		l.advance()
		l.emit(tt, string(ch), types.Null, start)
		return nil
	}

	switch {
	case isSingleQuote(ch):
		return l.readChar()
	case isDoubleQuote(ch):
		ok, err := l.readBool()
		if err != nil || ok {
			return err
		}
		return l.readString()
	case ch == '.' || isDigit(ch):
		return l.readNumber()
	case isIdentStart(ch):
		return l.readWord()
	}

	return types.NewLexError(start, string(ch), "Invalid character.")
}

var singleChar = map[rune]TokenType{
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	',': TokenComma,
	':': TokenColon,
	'#': TokenOctothorpe,
	'&': TokenAmpersand,
	'=': TokenAssign,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'%': TokenPercent,
	'<': TokenLt,
	'>': TokenGt,
}

// skipComment consumes a line comment up to, not including, the newline.
func (l *Lexer) skipComment() {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.advance()
	}
}

// readChar reads a character literal: 'X', '' (the null character),
// '[X]' for a literal bracket, or a backslash escape other than \n.
func (l *Lexer) readChar() error {
	start := l.position()
	from := l.pos
	l.advance() // opening quote

	var value rune
	switch {
	case l.atLineEnd():
		return types.NewLexError(start, l.fragment(from), "Invalid char literal.")
	case isSingleQuote(l.input[l.pos]):
		l.advance()
		l.emit(TokenCharLit, l.fragment(from), types.NewChar(0), start)
		return nil
	case l.input[l.pos] == '[' && l.peek(2) == ']' && isSingleQuote(l.peek(3)):
		value = l.peek(1)
		l.advanceN(3)
	case l.input[l.pos] == '\\':
		esc := l.peek(1)
		r, ok := charEscapes[esc]
		if !ok {
			l.advanceN(2)
			return types.NewLexError(start, l.fragment(from), "Invalid char literal.")
		}
		value = r
		l.advanceN(2)
	default:
		value = l.advance()
	}

	if l.atLineEnd() || !isSingleQuote(l.input[l.pos]) {
		if !l.atLineEnd() {
			l.advance()
		}
		return types.NewLexError(start, l.fragment(from), "Invalid char literal.")
	}
	l.advance() // closing quote
	l.emit(TokenCharLit, l.fragment(from), types.NewChar(value), start)
	return nil
}

// charEscapes lists the backslash escapes valid in a character literal.
// Newlines are written with # inside strings, so \n is not among them.
var charEscapes = map[rune]rune{
	't':  '\t',
	'r':  '\r',
	'b':  '\b',
	'f':  '\f',
	'\\': '\\',
	'\'': '\'',
	'"':  '"',
}

// readBool tries to read a quoted boolean literal ("TRUE" or "FALSE"). It
// returns false, leaving the position untouched, when the quoted text is
// anything else.
func (l *Lexer) readBool() (bool, error) {
	start := l.position()
	rest := l.input[l.pos+1:]

	for _, word := range [...]string{"TRUE", "FALSE"} {
		w := []rune(word)
		n := 0
		for n < len(w) && n < len(rest) && rest[n] == w[n] {
			n++
		}
		if n == len(rest) && n > 0 {
			// Source ended in the middle of the literal.
			return false, types.NewLexError(start, string(l.input[l.pos:]), "Unterminated boolean literal.")
		}
		if n == len(w) && isDoubleQuote(rest[n]) {
			from := l.pos
			l.advanceN(len(w) + 2)
			l.emit(TokenBoolLit, l.fragment(from), types.NewBool(word == "TRUE"), start)
			return true, nil
		}
	}
	return false, nil
}

// readString reads a double-quoted string literal, decoding # to a
// newline, [X] to X and backslash escapes.
func (l *Lexer) readString() error {
	start := l.position()
	from := l.pos
	l.advance() // opening quote

	var sb strings.Builder
	for {
		if l.atLineEnd() {
			return types.NewLexError(start, l.fragment(from), "Unterminated string literal.")
		}
		ch := l.input[l.pos]
		switch {
		case isDoubleQuote(ch):
			l.advance()
			l.emit(TokenStrLit, l.fragment(from), types.NewString(sb.String()), start)
			return nil
		case ch == '#':
			sb.WriteByte('\n')
			l.advance()
		case ch == '[':
			escStart := l.position()
			escFrom := l.pos
			if l.pos+1 >= len(l.input) || l.peek(1) == '\n' || l.peek(2) == '\n' || l.pos+2 >= len(l.input) {
				return types.NewLexError(start, l.fragment(from), "Unterminated string literal.")
			}
			if l.peek(2) != ']' {
				l.advanceN(3)
				return types.NewLexError(escStart, l.fragment(escFrom), "Invalid escape.")
			}
			sb.WriteRune(l.peek(1))
			l.advanceN(3)
		case ch == ']':
			return types.NewLexError(l.position(), "]", "Invalid escape.")
		case ch == '\\':
			if l.pos+1 >= len(l.input) || l.peek(1) == '\n' {
				return types.NewLexError(start, l.fragment(from), "Unterminated string literal.")
			}
			l.advance()
			sb.WriteRune(l.readEscape())
		default:
			sb.WriteRune(l.advance())
		}
	}
}

// readEscape decodes the escape whose letter is at the current position
// (the backslash has been consumed). Unknown escapes yield the letter.
func (l *Lexer) readEscape() rune {
	ch := l.advance()
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	case 'u':
		if l.pos+4 <= len(l.input) {
			if code, err := strconv.ParseUint(string(l.input[l.pos:l.pos+4]), 16, 32); err == nil {
				l.advanceN(4)
				return rune(code)
			}
		}
		return 'u'
	}
	if ch >= '0' && ch <= '7' {
		code := ch - '0'
		for i := 0; i < 2 && l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '7'; i++ {
			code = code*8 + (l.advance() - '0')
		}
		return code
	}
	return ch
}

// readNumber reads an integer or float literal. A float has exactly one
// dot, which may lead or trail the digits.
func (l *Lexer) readNumber() error {
	start := l.position()
	from := l.pos
	dots := 0
	for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.') {
		if l.input[l.pos] == '.' {
			dots++
		}
		l.advance()
	}

	raw := l.fragment(from)
	switch {
	case dots == 0:
		i, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return types.NewLexError(start, raw, "Invalid number literal.")
		}
		l.emit(TokenIntLit, raw, types.NewInt(int32(i)), start)
	case dots == 1 && raw != ".":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.NewLexError(start, raw, "Invalid number literal.")
		}
		l.emit(TokenFloatLit, raw, types.NewFloat(f), start)
	default:
		return types.NewLexError(start, raw, "Invalid number literal.")
	}
	return nil
}

// readWord reads an identifier or reserved word and tracks START/STOP
// balance.
func (l *Lexer) readWord() error {
	start := l.position()
	from := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.advance()
	}

	word := l.fragment(from)
	tt, ok := reservedWords[word]
	if !ok {
		l.emit(TokenIdent, word, types.Null, start)
		return nil
	}

	l.emit(tt, word, types.Null, start)
	switch tt {
	case TokenStart:
		l.blocks = append(l.blocks, l.tokens[len(l.tokens)-1])
	case TokenStop:
		if len(l.blocks) == 0 {
			return types.NewLexError(start, word, "'STOP' is missing 'START'.")
		}
		l.blocks = l.blocks[:len(l.blocks)-1]
	}
	return nil
}

func (l *Lexer) emit(tt TokenType, lexeme string, lit types.Value, pos types.Pos) {
	l.tokens = append(l.tokens, Token{Type: tt, Lexeme: lexeme, Literal: lit, Pos: pos})
}

func (l *Lexer) position() types.Pos {
	return types.Pos{Line: l.line, Column: l.col}
}

// advance consumes one character and keeps the line and column counters.
func (l *Lexer) advance() rune {
	ch := l.input[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *Lexer) advanceN(n int) {
	for i := 0; i < n && l.pos < len(l.input); i++ {
		l.advance()
	}
}

// peek returns the character off positions ahead, or 0 past the end.
func (l *Lexer) peek(off int) rune {
	if l.pos+off >= len(l.input) {
		return 0
	}
	return l.input[l.pos+off]
}

// atLineEnd reports whether the current position is a newline or the end.
func (l *Lexer) atLineEnd() bool {
	return l.pos >= len(l.input) || l.input[l.pos] == '\n'
}

func (l *Lexer) fragment(from int) string {
	return string(l.input[from:l.pos])
}

// isSingleQuote accepts the straight and typographic single quotes.
func isSingleQuote(ch rune) bool {
	return ch == '\'' || ch == '‘' || ch == '’' || ch == '‛'
}

// isDoubleQuote accepts the straight and typographic double quotes.
func isDoubleQuote(ch rune) bool {
	return ch == '"' || ch == '“' || ch == '”' || ch == '‟'
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return ch == '_' || ch == '$' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}
