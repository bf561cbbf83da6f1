// Package syntax implements the CFPL front end: the lexer, the statement
// and expression tree, and the recursive descent parser that builds it.
package syntax

import (
	"fmt"

	"github.com/lemonberrylabs/cfpl/pkg/types"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Structural
	TokenLParen     TokenType = iota // (
	TokenRParen                      // )
	TokenLBracket                    // [
	TokenRBracket                    // ]
	TokenComma                       // ,
	TokenColon                       // :
	TokenOctothorpe                  // #
	TokenAmpersand                   // &

	// Operators
	TokenAssign  // =
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenGt      // >
	TokenLt      // <
	TokenGe      // >=
	TokenLe      // <=
	TokenEq      // ==
	TokenNe      // <>

	// Literals
	TokenIntLit
	TokenFloatLit
	TokenBoolLit
	TokenCharLit
	TokenStrLit

	TokenIdent

	// Reserved words
	TokenAnd
	TokenOr
	TokenNot
	TokenOutput
	TokenInput
	TokenVar
	TokenAs
	TokenInt
	TokenBool
	TokenFloat
	TokenChar
	TokenStart
	TokenStop
	TokenIf
	TokenElse
	TokenWhile

	// Special
	TokenEOL // end of a non-blank line
	TokenEOF // end of source
)

var tokenNames = [...]string{
	TokenLParen:     "LEFT_PAREN",
	TokenRParen:     "RIGHT_PAREN",
	TokenLBracket:   "LEFT_BRACKET",
	TokenRBracket:   "RIGHT_BRACKET",
	TokenComma:      "COMMA",
	TokenColon:      "COLON",
	TokenOctothorpe: "OCTOTHORPE",
	TokenAmpersand:  "AMPERSAND",
	TokenAssign:     "ASSIGN",
	TokenPlus:       "PLUS",
	TokenMinus:      "MINUS",
	TokenStar:       "STAR",
	TokenSlash:      "SLASH",
	TokenPercent:    "PERCENT",
	TokenGt:         "GT",
	TokenLt:         "LT",
	TokenGe:         "GE",
	TokenLe:         "LE",
	TokenEq:         "EQ",
	TokenNe:         "NE",
	TokenIntLit:     "INT_LIT",
	TokenFloatLit:   "FLOAT_LIT",
	TokenBoolLit:    "BOOL_LIT",
	TokenCharLit:    "CHAR_LIT",
	TokenStrLit:     "STR_LIT",
	TokenIdent:      "IDENT",
	TokenAnd:        "AND",
	TokenOr:         "OR",
	TokenNot:        "NOT",
	TokenOutput:     "OUTPUT",
	TokenInput:      "INPUT",
	TokenVar:        "VAR",
	TokenAs:         "AS",
	TokenInt:        "INT",
	TokenBool:       "BOOL",
	TokenFloat:      "FLOAT",
	TokenChar:       "CHAR",
	TokenStart:      "START",
	TokenStop:       "STOP",
	TokenIf:         "IF",
	TokenElse:       "ELSE",
	TokenWhile:      "WHILE",
	TokenEOL:        "EOL",
	TokenEOF:        "EOF",
}

// String returns the token kind name used in diagnostics.
func (t TokenType) String() string {
	if t >= 0 && int(t) < len(tokenNames) && tokenNames[t] != "" {
		return tokenNames[t]
	}
	return "UNKNOWN"
}

// reservedWords maps every CFPL keyword to its token type.
var reservedWords = map[string]TokenType{
	"AND":    TokenAnd,
	"OR":     TokenOr,
	"NOT":    TokenNot,
	"OUTPUT": TokenOutput,
	"INPUT":  TokenInput,
	"VAR":    TokenVar,
	"AS":     TokenAs,
	"INT":    TokenInt,
	"BOOL":   TokenBool,
	"FLOAT":  TokenFloat,
	"CHAR":   TokenChar,
	"START":  TokenStart,
	"STOP":   TokenStop,
	"IF":     TokenIf,
	"ELSE":   TokenElse,
	"WHILE":  TokenWhile,
}

// IsReserved reports whether word is a CFPL keyword.
func IsReserved(word string) bool {
	_, ok := reservedWords[word]
	return ok
}

// Token represents a single lexical token.
type Token struct {
	Type    TokenType
	Lexeme  string      // original source text
	Literal types.Value // decoded value for literal tokens, Null otherwise
	Pos     types.Pos
}

// String returns a debug-friendly representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s '%s' %d:%d", t.Type, t.Lexeme, t.Pos.Line, t.Pos.Column)
}

// declType maps a type keyword token to its declared type tag.
func declType(tt TokenType) types.DeclType {
	switch tt {
	case TokenInt:
		return types.DeclInt
	case TokenFloat:
		return types.DeclFloat
	case TokenBool:
		return types.DeclBool
	case TokenChar:
		return types.DeclChar
	default:
		return types.DeclNone
	}
}
