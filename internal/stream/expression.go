package stream

import "github.com/Henry2SS/granitetree/internal/column"

// Expression is a compiled scalar expression DAG: given an input block it
// returns the block with columns added or rewritten. The catalog of
// concrete scalar functions is an external collaborator (spec §1 "the
// specific catalog of scalar and aggregate functions" is out of scope);
// this package only needs the evaluation contract.
type Expression interface {
	Evaluate(input *column.Block) (*column.Block, error)
}

// ExpressionFunc adapts a plain function to the Expression interface, used
// by tests and by simple single-function projections.
type ExpressionFunc func(*column.Block) (*column.Block, error)

func (f ExpressionFunc) Evaluate(input *column.Block) (*column.Block, error) { return f(input) }

// ExpressionStream applies a compiled Expression to every block pulled
// from its child (spec §4.1 "Expression").
type ExpressionStream struct {
	base
	child InputStream
	expr  Expression
}

// NewExpressionStream wraps child, applying expr to every block it
// produces.
func NewExpressionStream(child InputStream, expr Expression) *ExpressionStream {
	return &ExpressionStream{child: child, expr: expr}
}

func (s *ExpressionStream) ReadPrefix() error { return s.child.ReadPrefix() }
func (s *ExpressionStream) ReadSuffix() error { return s.child.ReadSuffix() }

func (s *ExpressionStream) Cancel() {
	s.base.Cancel()
	s.child.Cancel()
}

func (s *ExpressionStream) Read() (*column.Block, error) {
	if s.Cancelled() {
		return emptyBlock(), nil
	}
	block, err := s.child.Read()
	if err != nil {
		return nil, err
	}
	if block.Empty() {
		return block, nil
	}
	return s.expr.Evaluate(block)
}
