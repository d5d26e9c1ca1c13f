package translator

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fhirpatherr"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

func init() {
	registerFunction("highboundary", boundaryFunction("high"))
	registerFunction("lowboundary", boundaryFunction("low"))
}

// defaultBoundaryContext mirrors apd's suggested default precision/rounding
// for half-ULP boundary arithmetic (spec section 4.5's highBoundary/
// lowBoundary on Decimal: "widen by half a unit in the last place of the
// stated precision"). apd gives an exact decimal half-ULP instead of the
// binary-float approximation math/big's float64 path would introduce.
var defaultBoundaryContext = apd.BaseContext.WithPrecision(34)

func boundaryFunction(kind string) functionHandler {
	return func(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
		if err := t.requireArgRange(call, 0, 1); err != nil {
			return nil, err
		}
		precision := -1
		precisionGiven := false
		if len(call.Arguments) == 1 {
			lit, ok := call.Arguments[0].(*ast.Literal)
			if !ok || lit.Type != ast.LiteralInteger {
				return nil, t.validationErr(fhirpatherr.ErrInvalidPrecision, "boundary_precision_not_integer_literal", call.SourceText,
					"%sBoundary() precision argument must be an integer literal", kind)
			}
			precision = parseLiteralInt(lit.Value)
			precisionGiven = true
		}
		// Precision outside [0,31] returns NULL (spec section 4.5) rather
		// than being passed through to the dialect.
		if precisionGiven && (precision < 0 || precision > 31) {
			f, err := scalarFragment(t, "NULL")
			if err != nil {
				return nil, err
			}
			mergeDeps(f, target)
			return f, nil
		}

		literalType := target.MetadataString("literal_type")
		var expr string
		switch {
		case isTemporalType(literalType):
			expr = t.dialect.GenerateTemporalBoundary(target.Expression, literalType, precision, kind, false)
		case literalType == string(ast.LiteralDecimal) && target.MetadataBool("is_literal"):
			// Quantity/decimal literals get their boundary computed at
			// translation time with apd's exact decimal arithmetic, using
			// half-ULP widening on the literal's own precision (spec
			// section 4.5), rather than deferred to the dialect.
			formatted, err := decimalLiteralBoundary(target.Expression, precisionGiven, precision, kind)
			if err != nil {
				return nil, t.translationErr(fhirpatherr.ErrIncompatibleBoundaryInput, "unparseable_boundary_decimal_literal", call.SourceText, err.Error())
			}
			expr = formatted
		default:
			expr = t.dialect.GenerateDecimalBoundary(target.Expression, halfULPPrecision(precision), kind)
		}
		f, err := scalarFragment(t, expr)
		if err != nil {
			return nil, err
		}
		mergeDeps(f, target)
		return f, nil
	}
}

// decimalLiteralBoundary computes a highBoundary/lowBoundary result for a
// decimal (or quantity-value) literal at translation time: widen the
// literal by half a unit in the last place of its own decimal precision,
// or of an explicitly requested precision, using apd's exact decimal
// arithmetic rather than a binary-float approximation.
func decimalLiteralBoundary(raw string, precisionGiven bool, precision int, kind string) (string, error) {
	d, _, err := apd.NewFromString(raw)
	if err != nil {
		return "", err
	}
	digits := precision
	if !precisionGiven {
		digits = int(-d.Exponent)
		if digits < 0 {
			digits = 0
		}
	}
	halfULP := apd.New(5, int32(-(digits + 1)))
	result := new(apd.Decimal)
	if kind == "low" {
		if _, err := defaultBoundaryContext.Sub(result, d, halfULP); err != nil {
			return "", err
		}
	} else {
		if _, err := defaultBoundaryContext.Add(result, d, halfULP); err != nil {
			return "", err
		}
	}
	return result.Text('f'), nil
}

func parseLiteralInt(value string) int {
	n := 0
	neg := false
	for i, r := range value {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		return -n
	}
	return n
}

// halfULPPrecision folds an explicit precision argument (or, absent one,
// the context's default precision) into the digit count GenerateDecimalBoundary
// uses to compute the half-unit-in-the-last-place widening, per
// defaultBoundaryContext.
func halfULPPrecision(explicit int) int {
	if explicit >= 0 {
		return explicit
	}
	return int(defaultBoundaryContext.Precision)
}
