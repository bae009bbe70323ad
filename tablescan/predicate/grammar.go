package predicate

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
)

// Grammar of the expression language understood by the stores:
//
//	expression = term { "|" term }
//	term       = factor { "&" factor }
//	factor     = "(" expression ")" | comparison
//	comparison = operand op operand
//	op         = "<" | "<=" | ">" | ">=" | "==" | "!="
//	operand    = column name | number
//
// "&" binds tighter than the comparison operators in this language, so a term made of several factors
// must parenthesise each comparison: (60 < heart_rate) & (heart_rate < 70).

type astExpression struct {
	Head *astTerm     `parser:"@@"`
	Tail []*astOrTail `parser:"@@*"`
}

type astOrTail struct {
	Op   string   `parser:"@('|' | 'or')"`
	Term *astTerm `parser:"@@"`
}

type astTerm struct {
	Head *astFactor    `parser:"@@"`
	Tail []*astAndTail `parser:"@@*"`
}

type astAndTail struct {
	Op     string     `parser:"@('&' | 'and')"`
	Factor *astFactor `parser:"@@"`
}

type astFactor struct {
	Grouped    *astExpression `parser:"  '(' @@ ')'"`
	Comparison *astComparison `parser:"| @@"`
}

type astComparison struct {
	Left  *astOperand          `parser:"@@"`
	Op    string               `parser:"@('<=' | '>=' | '==' | '!=' | '<' | '>')"`
	Right *astOperand          `parser:"@@"`
	Chain []*astChainedCompare `parser:"@@*"`
}

// astChainedCompare is only captured so that "60 < x < 70" can be rejected with a useful message
type astChainedCompare struct {
	Op      string      `parser:"@('<=' | '>=' | '==' | '!=' | '<' | '>')"`
	Operand *astOperand `parser:"@@"`
}

type astOperand struct {
	Number *string `parser:"  @Number"`
	Column *string `parser:"| @Ident"`
}

func (o *astOperand) String() string {
	if o.Number != nil {
		return *o.Number
	}
	if o.Column != nil {
		return *o.Column
	}
	return ""
}

var (
	predicateLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Keyword", Pattern: `(?i)\b(and|or|not)\b`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Number", Pattern: `[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
		{Name: "Operator", Pattern: `<=|>=|==|!=|[<>&|()]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	predicateParser = participle.MustBuild[astExpression](
		participle.Lexer(predicateLexer),
		participle.CaseInsensitive("Keyword"),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
)

// Parse parses an expression such as "(60 < heart_rate) & (heart_rate < 70)" into a Filter.
// Malformed expressions fail with an InvalidPredicate error; in particular chained comparisons ("60 < x < 70")
// and the "and"/"or" keywords are rejected rather than being given a meaning they don't have in the stores.
func Parse(expression string) (Filter, errorsx.Error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, tablescan.NewInvalidPredicateError("empty expression")
	}

	ast, err := predicateParser.ParseString("", expression)
	if err != nil {
		return nil, tablescan.NewInvalidPredicateError("parse error", "expression", expression, "cause", err.Error())
	}

	filter, parseErr := ast.toFilter()
	if parseErr != nil {
		return nil, errorsx.Wrap(parseErr, "expression", expression)
	}

	return filter, nil
}

// MustParse is Parse for expressions known to be valid. It panics otherwise.
func MustParse(expression string) Filter {
	filter, err := Parse(expression)
	if err != nil {
		panic(err.Error())
	}
	return filter
}

func (e *astExpression) toFilter() (Filter, errorsx.Error) {
	if len(e.Tail) == 0 {
		return e.Head.toFilter()
	}

	terms := []*astTerm{e.Head}
	for _, tail := range e.Tail {
		if tail.Op != string(LogicalFilterOperatorOr) {
			return nil, tablescan.NewInvalidPredicateError(`"or" is not supported, use "|"`)
		}
		terms = append(terms, tail.Term)
	}

	var childFilters []Filter
	for _, term := range terms {
		if term.isBareComparison() {
			return nil, bareComparisonError(term.Head.Comparison)
		}

		childFilter, err := term.toFilter()
		if err != nil {
			return nil, err
		}
		childFilters = append(childFilters, childFilter)
	}

	return Or(childFilters...), nil
}

func (t *astTerm) isBareComparison() bool {
	return len(t.Tail) == 0 && t.Head.Comparison != nil
}

func (t *astTerm) toFilter() (Filter, errorsx.Error) {
	if len(t.Tail) == 0 {
		return t.Head.toFilter()
	}

	factors := []*astFactor{t.Head}
	for _, tail := range t.Tail {
		if tail.Op != string(LogicalFilterOperatorAnd) {
			return nil, tablescan.NewInvalidPredicateError(`"and" is not supported, use "&"`)
		}
		factors = append(factors, tail.Factor)
	}

	var childFilters []Filter
	for _, factor := range factors {
		if factor.Comparison != nil {
			return nil, bareComparisonError(factor.Comparison)
		}

		childFilter, err := factor.toFilter()
		if err != nil {
			return nil, err
		}
		childFilters = append(childFilters, childFilter)
	}

	return And(childFilters...), nil
}

func bareComparisonError(comparison *astComparison) errorsx.Error {
	return tablescan.NewInvalidPredicateError(
		`comparisons combined with "&" or "|" must be parenthesised`,
		"comparison", comparison.String(),
	)
}

func (f *astFactor) toFilter() (Filter, errorsx.Error) {
	if f.Grouped != nil {
		return f.Grouped.toFilter()
	}

	return f.Comparison.toFilter()
}

func (c *astComparison) String() string {
	fragments := []string{c.Left.String(), c.Op, c.Right.String()}
	for _, chained := range c.Chain {
		fragments = append(fragments, chained.Op, chained.Operand.String())
	}
	return strings.Join(fragments, " ")
}

func (c *astComparison) toFilter() (Filter, errorsx.Error) {
	if len(c.Chain) != 0 {
		suggestion := c.String()
		if len(c.Chain) == 1 {
			suggestion = "(" + c.Left.String() + " " + c.Op + " " + c.Right.String() + ") & (" +
				c.Right.String() + " " + c.Chain[0].Op + " " + c.Chain[0].Operand.String() + ")"
		}

		return nil, tablescan.NewInvalidPredicateError(
			"chained comparisons are not supported, use a conjunction of single comparisons",
			"comparison", c.String(),
			"suggestion", suggestion,
		)
	}

	operator := ComparativeOperator(c.Op)

	switch {
	case c.Left.Column != nil && c.Right.Number != nil:
		operand, ok := ParseOperand(*c.Right.Number)
		if !ok {
			return nil, tablescan.NewInvalidPredicateError("invalid number", "number", *c.Right.Number)
		}
		return Compare(*c.Left.Column, operator, operand), nil
	case c.Left.Number != nil && c.Right.Column != nil:
		operand, ok := ParseOperand(*c.Left.Number)
		if !ok {
			return nil, tablescan.NewInvalidPredicateError("invalid number", "number", *c.Left.Number)
		}
		// normalise to <column> <op> <literal>
		return Compare(*c.Right.Column, operator.Flip(), operand), nil
	default:
		return nil, tablescan.NewInvalidPredicateError(
			"a comparison must be between a column and a number",
			"comparison", c.String(),
		)
	}
}
