package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/lemonberrylabs/cfpl/pkg/syntax"
	"github.com/lemonberrylabs/cfpl/pkg/types"
)

// ErrCancelled is returned by Execute after Cancel has been called.
var ErrCancelled = errors.New("execution cancelled")

// Options configures an Engine. Zero limits mean unlimited.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer

	// MaxSteps bounds the number of executed statements and loop iterations.
	MaxSteps int
	// MaxOutput bounds the number of bytes written by OUTPUT.
	MaxOutput int
}

// Engine executes a parsed CFPL program.
type Engine struct {
	program []syntax.Stmt
	scope   *VariableScope
	in      *inputReader
	out     io.Writer
	opts    Options

	mu        sync.Mutex
	stepCount int
	written   int
	cancelled bool
}

// NewEngine creates an engine for a program produced by syntax.Parse.
func NewEngine(program []syntax.Stmt, opts Options) *Engine {
	out := opts.Stdout
	if out == nil {
		out = io.Discard
	}
	return &Engine{
		program: program,
		scope:   NewScope(),
		in:      newInputReader(opts.Stdin),
		out:     out,
		opts:    opts,
	}
}

// Execute runs the program to completion. Evaluation errors are returned as
// *types.Error; cancellation returns the context error or ErrCancelled.
func (e *Engine) Execute(ctx context.Context) error {
	for _, stmt := range e.program {
		if err := e.execute(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Scope returns the variable store.
func (e *Engine) Scope() *VariableScope {
	return e.scope
}

// Cancel stops the execution before its next statement.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.cancelled = true
	e.mu.Unlock()
}

// StepCount returns the current step count.
func (e *Engine) StepCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepCount
}

// tick is called before every statement and loop iteration.
func (e *Engine) tick(ctx context.Context, at syntax.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelled {
		return ErrCancelled
	}
	e.stepCount++
	if e.opts.MaxSteps > 0 && e.stepCount > e.opts.MaxSteps {
		return runtimeError(at, fmt.Sprintf("Execution exceeded maximum step limit of %d.", e.opts.MaxSteps))
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, stmt syntax.Stmt) error {
	if err := e.tick(ctx, stmtToken(stmt)); err != nil {
		return err
	}

	switch n := stmt.(type) {
	case *syntax.VarStmt:
		v, err := e.evaluate(n.Init)
		if err != nil {
			return err
		}
		coerced, ok := n.Type.Coerce(v)
		if !ok {
			return runtimeError(n.Name, fmt.Sprintf("Expected '%s' type.", n.Type))
		}
		e.scope.Define(n.Name.Lexeme, n.Type, coerced)
		return nil

	case *syntax.ExprStmt:
		_, err := e.evaluate(n.Expr)
		return err

	case *syntax.PrintStmt:
		v, err := e.evaluate(n.Expr)
		if err != nil {
			return err
		}
		return e.write(n.Keyword, v.String())

	case *syntax.InputStmt:
		return e.executeInput(n)

	case *syntax.IfStmt:
		cond, err := e.condition(n.Keyword, n.Cond)
		if err != nil {
			return err
		}
		if cond {
			return e.execute(ctx, n.Then)
		}
		if n.Else != nil {
			return e.execute(ctx, n.Else)
		}
		return nil

	case *syntax.WhileStmt:
		for {
			cond, err := e.condition(n.Keyword, n.Cond)
			if err != nil {
				return err
			}
			if !cond {
				return nil
			}
			if err := e.execute(ctx, n.Body); err != nil {
				return err
			}
			if err := e.tick(ctx, n.Keyword); err != nil {
				return err
			}
		}

	case *syntax.BlockStmt:
		for _, s := range n.Stmts {
			if err := e.execute(ctx, s); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unsupported statement type: %T", stmt)
	}
}

func (e *Engine) executeInput(n *syntax.InputStmt) error {
	for _, v := range n.Vars {
		typ, ok := e.scope.Type(v.Name.Lexeme)
		if !ok {
			return runtimeError(v.Name, fmt.Sprintf("Undefined variable '%s'.", v.Name.Lexeme))
		}
		value, err := e.in.Read(typ)
		if err != nil {
			return runtimeError(v.Name, err.Error())
		}
		e.scope.Set(v.Name.Lexeme, value)
	}
	return nil
}

func (e *Engine) write(at syntax.Token, s string) error {
	if e.opts.MaxOutput > 0 && e.written+len(s) > e.opts.MaxOutput {
		return runtimeError(at, fmt.Sprintf("Output exceeded limit of %d bytes.", e.opts.MaxOutput))
	}
	n, err := io.WriteString(e.out, s)
	e.written += n
	return err
}

// condition evaluates the controlling expression of IF and WHILE.
func (e *Engine) condition(keyword syntax.Token, cond syntax.Expr) (bool, error) {
	v, err := e.evaluate(cond)
	if err != nil {
		return false, err
	}
	if v.Kind() != types.KindBool {
		return false, runtimeError(keyword, "Expected 'BOOL' evaluation result.")
	}
	return v.AsBool(), nil
}

// stmtToken returns the token a statement is reported at.
func stmtToken(stmt syntax.Stmt) syntax.Token {
	switch n := stmt.(type) {
	case *syntax.VarStmt:
		return n.Name
	case *syntax.ExprStmt:
		return exprToken(n.Expr)
	case *syntax.PrintStmt:
		return n.Keyword
	case *syntax.InputStmt:
		return n.Keyword
	case *syntax.IfStmt:
		return n.Keyword
	case *syntax.WhileStmt:
		return n.Keyword
	case *syntax.BlockStmt:
		return n.Start
	}
	return syntax.Token{}
}

func exprToken(expr syntax.Expr) syntax.Token {
	switch n := expr.(type) {
	case *syntax.LiteralExpr:
		return n.Token
	case *syntax.VariableExpr:
		return n.Name
	case *syntax.GroupingExpr:
		return exprToken(n.Inner)
	case *syntax.UnaryExpr:
		return n.Op
	case *syntax.BinaryExpr:
		return n.Op
	case *syntax.LogicalExpr:
		return n.Op
	case *syntax.AssignExpr:
		return n.Name
	}
	return syntax.Token{}
}

func runtimeError(tok syntax.Token, msg string) *types.Error {
	return types.NewRuntimeError(tok.Pos, tok.Type.String(), tok.Lexeme, msg)
}
