package syntax

import "github.com/lemonberrylabs/cfpl/pkg/types"

// Expr is the interface for all expression nodes.
type Expr interface {
	exprNode() string
}

// Stmt is the interface for all statement nodes.
type Stmt interface {
	stmtNode() string
}

// LiteralExpr represents a literal value.
type LiteralExpr struct {
	Value types.Value
	Token Token // source token; zero for synthesized defaults
}

func (n *LiteralExpr) exprNode() string { return "Literal" }

// VariableExpr represents a variable reference.
type VariableExpr struct {
	Name Token
}

func (n *VariableExpr) exprNode() string { return "Variable" }

// GroupingExpr represents a parenthesized expression.
type GroupingExpr struct {
	Inner Expr
}

func (n *GroupingExpr) exprNode() string { return "Grouping" }

// UnaryExpr represents +x, -x and NOT x.
type UnaryExpr struct {
	Op    Token
	Right Expr
}

func (n *UnaryExpr) exprNode() string { return "Unary" }

// BinaryExpr represents arithmetic, comparison, equality and & operations.
type BinaryExpr struct {
	Left  Expr
	Op    Token
	Right Expr
}

func (n *BinaryExpr) exprNode() string { return "Binary" }

// LogicalExpr represents AND and OR, which short-circuit.
type LogicalExpr struct {
	Left  Expr
	Op    Token
	Right Expr
}

func (n *LogicalExpr) exprNode() string { return "Logical" }

// AssignExpr represents name = value. Type is the declared type of the
// target captured at parse time.
type AssignExpr struct {
	Name  Token
	Value Expr
	Type  types.DeclType
}

func (n *AssignExpr) exprNode() string { return "Assign" }

// VarStmt declares one variable. Init is never nil: an omitted initialiser
// is replaced with the typed default.
type VarStmt struct {
	Name Token
	Type types.DeclType
	Init Expr
}

func (n *VarStmt) stmtNode() string { return "Var" }

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	Expr Expr
}

func (n *ExprStmt) stmtNode() string { return "Expression" }

// PrintStmt is OUTPUT: expr.
type PrintStmt struct {
	Keyword Token
	Expr    Expr
}

func (n *PrintStmt) stmtNode() string { return "Print" }

// InputStmt is INPUT: a, b, c.
type InputStmt struct {
	Keyword Token
	Vars    []*VariableExpr
}

func (n *InputStmt) stmtNode() string { return "Input" }

// IfStmt is IF (cond) with an optional ELSE block. Else is nil when absent.
type IfStmt struct {
	Keyword Token
	Cond    Expr
	Then    Stmt
	Else    Stmt
}

func (n *IfStmt) stmtNode() string { return "If" }

// WhileStmt is WHILE (cond).
type WhileStmt struct {
	Keyword Token
	Cond    Expr
	Body    Stmt
}

func (n *WhileStmt) stmtNode() string { return "While" }

// BlockStmt is a START ... STOP block. Blocks do not open a scope.
type BlockStmt struct {
	Start Token
	Stmts []Stmt
}

func (n *BlockStmt) stmtNode() string { return "Block" }
