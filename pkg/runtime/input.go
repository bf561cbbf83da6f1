package runtime

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/lemonberrylabs/cfpl/pkg/types"
)

var errEndOfInput = errors.New("Unexpected end of input.")

// inputReader reads INPUT values from stdin. Numbers are read as single
// whitespace-delimited tokens; CHAR and BOOL consume a whole line. A line
// read that follows a number first discards the rest of the number's line.
type inputReader struct {
	r           *bufio.Reader
	afterNumber bool
}

func newInputReader(r io.Reader) *inputReader {
	if r == nil {
		r = strings.NewReader("")
	}
	return &inputReader{r: bufio.NewReader(r)}
}

// Read parses the next value for a variable of type typ.
func (in *inputReader) Read(typ types.DeclType) (types.Value, error) {
	switch typ {
	case types.DeclInt:
		tok, err := in.readToken()
		if err != nil {
			return types.Null, err
		}
		i, err := strconv.ParseInt(tok, 10, 32)
		if err != nil {
			return types.Null, fmt.Errorf("Invalid INT input '%s'.", tok)
		}
		return types.NewInt(int32(i)), nil

	case types.DeclFloat:
		tok, err := in.readToken()
		if err != nil {
			return types.Null, err
		}
		if !isDecimal(tok) {
			return types.Null, fmt.Errorf("Invalid FLOAT input '%s'.", tok)
		}
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return types.Null, fmt.Errorf("Invalid FLOAT input '%s'.", tok)
		}
		return types.NewFloat(f), nil

	case types.DeclChar:
		line, err := in.readLine()
		if err != nil {
			return types.Null, err
		}
		if line == "" {
			return types.Null, errors.New("Invalid CHAR input ''.")
		}
		r := []rune(line)[0]
		return types.NewChar(r), nil

	case types.DeclBool:
		line, err := in.readLine()
		if err != nil {
			return types.Null, err
		}
		switch line {
		case "TRUE":
			return types.NewBool(true), nil
		case "FALSE":
			return types.NewBool(false), nil
		}
		return types.Null, fmt.Errorf("Invalid BOOL input '%s'.", line)
	}

	return types.Null, errors.New("Unsupported input type.")
}

// readToken skips leading whitespace and returns the next run of
// non-whitespace characters. The delimiter is left unread.
func (in *inputReader) readToken() (string, error) {
	var sb strings.Builder
	for {
		r, _, err := in.r.ReadRune()
		if err != nil {
			if sb.Len() == 0 {
				return "", errEndOfInput
			}
			break
		}
		if unicode.IsSpace(r) {
			if sb.Len() == 0 {
				continue
			}
			_ = in.r.UnreadRune()
			break
		}
		sb.WriteRune(r)
	}
	in.afterNumber = true
	return sb.String(), nil
}

// readLine returns the next line without its terminator.
func (in *inputReader) readLine() (string, error) {
	if in.afterNumber {
		in.afterNumber = false
		if _, err := in.r.ReadString('\n'); err != nil && err != io.EOF {
			return "", err
		}
	}

	line, err := in.r.ReadString('\n')
	if err != nil {
		if err != io.EOF {
			return "", err
		}
		if line == "" {
			return "", errEndOfInput
		}
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// isDecimal accepts signed decimal numbers with an optional fraction and
// exponent. strconv alone would also take hex floats, Inf and NaN.
func isDecimal(s string) bool {
	s = strings.TrimLeft(s, "+-")
	if s == "" {
		return false
	}
	digits := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = true
		case r == '.' || r == 'e' || r == 'E' || r == '+' || r == '-':
		default:
			return false
		}
	}
	return digits
}
