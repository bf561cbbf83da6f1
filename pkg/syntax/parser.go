package syntax

import (
	"fmt"

	"github.com/lemonberrylabs/cfpl/pkg/types"
)

// Parser is a recursive descent parser for CFPL programs.
//
// Besides the grammar it enforces the placement rules of the language:
// declarations come before the first executable statement, executable
// statements live inside the single top-level START/STOP block, and nested
// blocks only appear as the body of IF, ELSE or WHILE.
type Parser struct {
	tokens []Token
	pos    int

	declared map[string]types.DeclType

	varDecls  bool // VAR still accepted
	inScope   bool // inside the top-level block
	inControl bool // a block is expected as an IF/ELSE/WHILE body
	scopes    int  // top-level blocks seen
}

// Parse lexes and parses a complete program.
func Parse(source string) ([]Stmt, error) {
	tokens, err := NewLexer(source).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// NewParser creates a parser over a token stream ending in EOF.
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens:   tokens,
		declared: make(map[string]types.DeclType),
		varDecls: true,
	}
}

// Parse parses the whole token stream. The result holds the declarations
// that precede the program block, in source order, followed by the block.
func (p *Parser) Parse() ([]Stmt, error) {
	var stmts []Stmt
	for !p.atEnd() {
		decl, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, decl...)
	}
	if p.scopes == 0 {
		return nil, p.errorAt(p.current(), "Expected 'START' program block.")
	}
	return stmts, nil
}

func (p *Parser) parseDeclaration() ([]Stmt, error) {
	if p.match(TokenVar) {
		return p.parseVarDeclaration()
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return []Stmt{stmt}, nil
}

// parseVarDeclaration parses VAR a [= e], b [= e] ... AS TYPE. The type is
// found by scanning ahead so that initialisers can be checked against it.
func (p *Parser) parseVarDeclaration() ([]Stmt, error) {
	if !p.varDecls {
		return nil, p.errorAt(p.previous(), "Misplaced variable declaration.")
	}

	typ, err := p.lookAheadType()
	if err != nil {
		return nil, err
	}

	var out []Stmt
	for {
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}

		var init Expr
		if p.match(TokenAssign) {
			init, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
			init, err = p.checkLiteral(name, typ, init)
			if err != nil {
				return nil, err
			}
		} else {
			init = &LiteralExpr{Value: typ.Default()}
		}

		if _, dup := p.declared[name.Lexeme]; dup {
			return nil, p.errorAt(name, fmt.Sprintf("Variable name '%s' is already declared.", name.Lexeme))
		}
		p.declared[name.Lexeme] = typ
		out = append(out, &VarStmt{Name: name, Type: typ, Init: init})

		if !p.match(TokenComma) {
			break
		}
	}

	if _, err := p.expect(TokenAs, "Expected declaration variable data type."); err != nil {
		return nil, err
	}
	if !p.match(TokenInt, TokenFloat, TokenBool, TokenChar) {
		return nil, p.errorAt(p.current(), "Expected declaration variable data type.")
	}
	if _, err := p.expect(TokenEOL, "Expected new line after declaration."); err != nil {
		return nil, err
	}
	return out, nil
}

// lookAheadType finds the AS clause of the declaration starting at the
// current token without consuming anything.
func (p *Parser) lookAheadType() (types.DeclType, error) {
	for i := p.pos; i < len(p.tokens); i++ {
		switch p.tokens[i].Type {
		case TokenAs:
			if i+1 < len(p.tokens) {
				if typ := declType(p.tokens[i+1].Type); typ != types.DeclNone {
					return typ, nil
				}
			}
			return types.DeclNone, p.errorAt(p.current(), "Expected declaration variable data type.")
		case TokenEOL, TokenStart, TokenEOF:
			return types.DeclNone, p.errorAt(p.current(), "Expected declaration variable data type.")
		}
	}
	return types.DeclNone, p.errorAt(p.current(), "Expected declaration variable data type.")
}

func (p *Parser) expectName() (Token, error) {
	tok := p.current()
	switch {
	case tok.Type == TokenIdent:
		return p.advance(), nil
	case IsReserved(tok.Lexeme):
		return tok, p.errorAt(tok, "Expected valid variable name but got reserved keyword.")
	default:
		return tok, p.errorAt(tok, "Expected valid variable name.")
	}
}

// checkLiteral verifies that a literal value fits the declared type of
// name. An INT literal for a FLOAT target is replaced by a FLOAT literal.
// Non-literal expressions are left to the evaluator.
func (p *Parser) checkLiteral(name Token, typ types.DeclType, value Expr) (Expr, error) {
	kind, ok := literalKind(value)
	if !ok {
		return value, nil
	}
	if typ == types.DeclFloat && kind == types.KindInt {
		if lit, ok := value.(*LiteralExpr); ok {
			return &LiteralExpr{Value: lit.Value.Promote(), Token: lit.Token}, nil
		}
		return value, nil
	}
	if !typ.Accepts(kind) {
		return nil, p.errorAt(name, fmt.Sprintf("Expected '%s' type.", typ))
	}
	return value, nil
}

// literalKind reports the kind of a constant expression: a literal, seen
// through grouping, sign and NOT.
func literalKind(e Expr) (types.Kind, bool) {
	switch n := e.(type) {
	case *LiteralExpr:
		return n.Value.Kind(), true
	case *GroupingExpr:
		return literalKind(n.Inner)
	case *UnaryExpr:
		kind, ok := literalKind(n.Right)
		if !ok {
			return kind, false
		}
		switch n.Op.Type {
		case TokenPlus, TokenMinus:
			return kind, kind == types.KindInt || kind == types.KindFloat
		case TokenNot:
			return kind, kind == types.KindBool
		}
	}
	return types.KindNull, false
}

func (p *Parser) parseStatement() (Stmt, error) {
	if p.check(TokenStart) {
		return p.parseBlock()
	}
	if !p.inScope {
		return nil, p.errorAt(p.current(), "Statement is out of scope.")
	}
	p.varDecls = false

	switch {
	case p.match(TokenIf):
		return p.parseIf()
	case p.match(TokenOutput):
		return p.parseOutput()
	case p.match(TokenInput):
		return p.parseInput()
	case p.match(TokenWhile):
		return p.parseWhile()
	}
	return p.parseExpressionStatement()
}

func (p *Parser) parseBlock() (Stmt, error) {
	start := p.advance()
	if p.inScope && !p.inControl {
		return nil, p.errorAt(start, "Nested scope is invalid.")
	}
	if !p.inScope && p.scopes > 0 {
		return nil, p.errorAt(start, "Multiple scope is invalid.")
	}

	top := false
	if !p.inScope {
		top = true
		p.inScope = true
		p.scopes++
	}

	if _, err := p.expect(TokenEOL, "Missing new line after 'START'."); err != nil {
		return nil, err
	}
	p.inControl = false

	var stmts []Stmt
	for !p.check(TokenStop) && !p.atEnd() {
		decl, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, decl...)
	}

	if _, err := p.expect(TokenStop, "Expected 'STOP' after code block."); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenEOL, "Missing new line after 'STOP'."); err != nil {
		return nil, err
	}

	if top {
		p.inScope = false
		p.varDecls = false
	}
	return &BlockStmt{Start: start, Stmts: stmts}, nil
}

// parseBody parses the START block that must follow IF, ELSE or WHILE.
func (p *Parser) parseBody() (Stmt, error) {
	if !p.check(TokenStart) {
		return nil, p.errorAt(p.current(), "Expected 'START' before code block.")
	}
	p.inControl = true
	return p.parseStatement()
}

func (p *Parser) parseCondition(keyword Token) (Expr, error) {
	if _, err := p.expect(TokenLParen, fmt.Sprintf("Expected '(' after '%s'.", keyword.Lexeme)); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen, "Expected ')' after condition."); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenEOL, "Missing new line after ')'."); err != nil {
		return nil, err
	}
	return cond, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	keyword := p.previous()
	cond, err := p.parseCondition(keyword)
	if err != nil {
		return nil, err
	}

	then, err := p.parseBody()
	if err != nil {
		return nil, err
	}

	stmt := &IfStmt{Keyword: keyword, Cond: cond, Then: then}
	if p.match(TokenElse) {
		if _, err := p.expect(TokenEOL, "Expected new line after 'ELSE'."); err != nil {
			return nil, err
		}
		stmt.Else, err = p.parseBody()
		if err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	keyword := p.previous()
	cond, err := p.parseCondition(keyword)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Keyword: keyword, Cond: cond, Body: body}, nil
}

func (p *Parser) parseOutput() (Stmt, error) {
	keyword := p.previous()
	if _, err := p.expect(TokenColon, "Expected ':' after 'OUTPUT'."); err != nil {
		return nil, err
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenEOL, "Expected new line after expression."); err != nil {
		return nil, err
	}
	return &PrintStmt{Keyword: keyword, Expr: value}, nil
}

func (p *Parser) parseInput() (Stmt, error) {
	keyword := p.previous()
	if _, err := p.expect(TokenColon, "Expected ':' after 'INPUT'."); err != nil {
		return nil, err
	}

	stmt := &InputStmt{Keyword: keyword}
	for {
		name, err := p.expect(TokenIdent, "Expected identifier for input.")
		if err != nil {
			return nil, err
		}
		if _, ok := p.declared[name.Lexeme]; !ok {
			return nil, p.errorAt(name, fmt.Sprintf("Undefined variable '%s'.", name.Lexeme))
		}
		stmt.Vars = append(stmt.Vars, &VariableExpr{Name: name})
		if !p.match(TokenComma) {
			break
		}
	}

	if _, err := p.expect(TokenEOL, "Expected new line after expression."); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseExpressionStatement() (Stmt, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenEOL, "Expected new line after expression."); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: expr}, nil
}

// parseExpression is the entry point for expressions.
// Precedence (low to high):
//
//	=
//	&
//	OR
//	AND
//	==, <>
//	>, >=, <, <=
//	+, -
//	*, /, %
//	unary +, -, NOT
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseAssignment()
}

func (p *Parser) parseAssignment() (Expr, error) {
	expr, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}

	if p.match(TokenAssign) {
		equals := p.previous()
		value, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		target, ok := expr.(*VariableExpr)
		if !ok {
			return nil, p.errorAt(equals, "Invalid assignment target.")
		}
		typ := p.declared[target.Name.Lexeme]
		value, err = p.checkLiteral(target.Name, typ, value)
		if err != nil {
			return nil, err
		}
		return &AssignExpr{Name: target.Name, Value: value, Type: typ}, nil
	}

	if p.check(TokenBoolLit, TokenCharLit, TokenFloatLit, TokenIntLit, TokenStrLit, TokenIdent) {
		return nil, p.errorAt(p.current(), "Missing expression operator.")
	}
	return expr, nil
}

func (p *Parser) parseConcatenation() (Expr, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for p.match(TokenAmpersand) {
		op := p.previous()
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match(TokenOr) {
		op := p.previous()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if err := p.checkLogical(left, op); err != nil {
			return nil, err
		}
		if err := p.checkLogical(right, op); err != nil {
			return nil, err
		}
		left = &LogicalExpr{Left: left, Op: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.match(TokenAnd) {
		op := p.previous()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		if err := p.checkLogical(left, op); err != nil {
			return nil, err
		}
		if err := p.checkLogical(right, op); err != nil {
			return nil, err
		}
		left = &LogicalExpr{Left: left, Op: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (Expr, error) {
	return p.parseBinary(p.parseComparison, TokenNe, TokenEq)
}

func (p *Parser) parseComparison() (Expr, error) {
	return p.parseBinary(p.parseTerm, TokenGt, TokenGe, TokenLt, TokenLe)
}

func (p *Parser) parseTerm() (Expr, error) {
	return p.parseBinary(p.parseFactor, TokenMinus, TokenPlus)
}

func (p *Parser) parseFactor() (Expr, error) {
	return p.parseBinary(p.parseUnary, TokenSlash, TokenStar, TokenPercent)
}

// parseBinary parses a left-associative chain of operators ops whose
// operands are produced by next.
func (p *Parser) parseBinary(next func() (Expr, error), ops ...TokenType) (Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for p.match(ops...) {
		op := p.previous()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.match(TokenPlus, TokenMinus, TokenNot) {
		op := p.previous()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op.Type == TokenNot {
			if err := p.checkLogical(right, op); err != nil {
				return nil, err
			}
		}
		return &UnaryExpr{Op: op, Right: right}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.current()

	switch tok.Type {
	case TokenIntLit, TokenFloatLit, TokenBoolLit, TokenCharLit, TokenStrLit:
		p.advance()
		return &LiteralExpr{Value: tok.Literal, Token: tok}, nil
	case TokenIdent:
		p.advance()
		if _, ok := p.declared[tok.Lexeme]; !ok {
			return nil, p.errorAt(tok, fmt.Sprintf("Undefined variable '%s'.", tok.Lexeme))
		}
		return &VariableExpr{Name: tok}, nil
	case TokenLParen:
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, "Expected ')' after expression."); err != nil {
			return nil, err
		}
		return &GroupingExpr{Inner: inner}, nil
	case TokenOctothorpe:
		// A bare # outside a string is a newline.
		p.advance()
		return &LiteralExpr{Value: types.NewString("\n"), Token: tok}, nil
	case TokenLBracket:
		if p.peek(1).Type == TokenOctothorpe && p.peek(2).Type == TokenRBracket {
			p.pos += 3
			return &LiteralExpr{Value: types.NewString("\n"), Token: p.previous()}, nil
		}
	}

	return nil, p.errorAt(tok, "Expected expression.")
}

// checkLogical rejects operands of AND, OR and NOT that cannot produce a
// boolean. op is the operator the operand belongs to.
func (p *Parser) checkLogical(e Expr, op Token) error {
	switch n := e.(type) {
	case *GroupingExpr:
		return p.checkLogical(n.Inner, op)
	case *UnaryExpr:
		if n.Op.Type == TokenNot {
			return p.checkLogical(n.Right, op)
		}
		return p.errorAt(n.Op, "Expected 'BOOL' evaluation result.")
	case *LogicalExpr:
		return nil
	case *BinaryExpr:
		if isComparison(n.Op.Type) {
			return nil
		}
		return p.errorAt(n.Op, "Expected 'BOOL' evaluation result.")
	case *LiteralExpr:
		if n.Value.Kind() == types.KindBool {
			return nil
		}
		return p.errorAt(n.Token, "Expected 'BOOL' evaluation result.")
	case *VariableExpr:
		if p.declared[n.Name.Lexeme] == types.DeclBool {
			return nil
		}
		return p.errorAt(n.Name, "Expected 'BOOL' evaluation result.")
	default:
		return p.errorAt(op, "Expected 'BOOL' evaluation result.")
	}
}

func isComparison(tt TokenType) bool {
	switch tt {
	case TokenEq, TokenNe, TokenLt, TokenLe, TokenGt, TokenGe:
		return true
	}
	return false
}

// current returns the current token.
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return p.eof()
	}
	return p.tokens[p.pos]
}

// previous returns the most recently consumed token.
func (p *Parser) previous() Token {
	if p.pos == 0 {
		return p.current()
	}
	return p.tokens[p.pos-1]
}

// peek returns the token off positions ahead without consuming it.
func (p *Parser) peek(off int) Token {
	if p.pos+off >= len(p.tokens) {
		return p.eof()
	}
	return p.tokens[p.pos+off]
}

func (p *Parser) eof() Token {
	if n := len(p.tokens); n > 0 {
		return p.tokens[n-1]
	}
	return Token{Type: TokenEOF, Lexeme: "EOF", Literal: types.Null}
}

// advance consumes the current token and returns it.
func (p *Parser) advance() Token {
	tok := p.current()
	if !p.atEnd() {
		p.pos++
	}
	return tok
}

func (p *Parser) atEnd() bool {
	return p.current().Type == TokenEOF
}

// check reports whether the current token has one of the given types.
func (p *Parser) check(tts ...TokenType) bool {
	cur := p.current().Type
	for _, tt := range tts {
		if cur == tt {
			return true
		}
	}
	return false
}

// match consumes the current token if it has one of the given types.
func (p *Parser) match(tts ...TokenType) bool {
	if p.atEnd() || !p.check(tts...) {
		return false
	}
	p.advance()
	return true
}

// expect consumes a token of the expected type or returns an error.
func (p *Parser) expect(tt TokenType, msg string) (Token, error) {
	if p.check(tt) {
		return p.advance(), nil
	}
	return p.current(), p.errorAt(p.current(), msg)
}

func (p *Parser) errorAt(tok Token, msg string) *types.Error {
	return types.NewParseError(tok.Pos, tok.Type.String(), tok.Lexeme, msg)
}
