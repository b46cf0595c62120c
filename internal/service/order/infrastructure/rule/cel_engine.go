// Package rule evaluates validation rules written as CEL expressions.
package rule

import (
	"context"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

// ExpressionPolicy approves an order when a boolean CEL expression over
// customerId, productIds and totalAmount holds, e.g.
//
//	totalAmount <= 1000.0 && !customerId.startsWith("blocked-")
type ExpressionPolicy struct {
	expr string
	prg  cel.Program
}

var _ port.ValidationPolicy = (*ExpressionPolicy)(nil)

// NewExpressionPolicy compiles expr once. It fails for syntax errors and for
// expressions that do not yield a bool.
func NewExpressionPolicy(expr string) (*ExpressionPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("orderId", cel.StringType),
		cel.Variable("customerId", cel.StringType),
		cel.Variable("productIds", cel.ListType(cel.StringType)),
		cel.Variable("totalAmount", cel.DoubleType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cel env")
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile %q", expr)
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, errors.Errorf("rule %q must return bool, got %v", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "program %q", expr)
	}
	return &ExpressionPolicy{expr: expr, prg: prg}, nil
}

func (p *ExpressionPolicy) Evaluate(ctx context.Context, order domain.OrderPlaced) (port.Verdict, error) {
	products := order.ProductIDs
	if products == nil {
		products = []string{}
	}
	out, _, err := p.prg.ContextEval(ctx, map[string]any{
		"orderId":     order.OrderID,
		"customerId":  order.CustomerID,
		"productIds":  products,
		"totalAmount": order.TotalAmount,
	})
	if err != nil {
		return port.Deny, errors.Wrapf(err, "evaluate %q", p.expr)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return port.Deny, errors.Errorf("rule %q returned %T", p.expr, out.Value())
	}
	return port.Verdict(ok), nil
}

func (p *ExpressionPolicy) String() string { return p.expr }
