// Package translator implements the visitor-driven FHIRPath AST-to-SQL
// compiler: the core this module exists to build. It owns every
// FHIRPath function, operator, and type-operation semantic; Fragment
// (immutable value type), Context (mutable per-call state), the
// TypeOracle and Dialect interfaces are its collaborators, not its
// concerns.
package translator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/context"
	"github.com/fhirsql/fhirpath2sql/internal/dialect"
	"github.com/fhirsql/fhirpath2sql/internal/fhirpatherr"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
	"github.com/fhirsql/fhirpath2sql/internal/typeoracle"
)

// Config bundles everything a Translator needs at construction.
type Config struct {
	Dialect           dialect.Dialect
	TypeOracle        typeoracle.Oracle
	Logger            *zap.Logger
	RootResourceTable string
	RootResourceType  string
	// RepeatDepthLimit bounds repeat()'s recursive CTE (spec section
	// 4.5: "cutoff depth 100"). Zero selects the default of 100.
	RepeatDepthLimit int
	// EnableToQuantityExtension opts into toQuantity() constructing a
	// {value, unit} Quantity from a target that safe-casts to decimal.
	// Left false, toQuantity() returns NULL unconditionally,
	// matching the unextended behavior (spec section 9's Open Question
	// on toQuantity: extend only behind an explicit gate).
	EnableToQuantityExtension bool
}

// Translator is a visitor over the closed AST node set. It is not
// thread-safe; a Translator owns its Context for the duration of exactly
// one Translate call, though the Translator value itself can be reused
// for a subsequent, independent call (Translate resets the context).
type Translator struct {
	dialect              dialect.Dialect
	oracle               typeoracle.Oracle
	logger               *zap.Logger
	repeatCap            int
	toQuantityExtEnabled bool

	ctx           *context.Context
	fragments     []*fragment.Fragment
	aliasCounters map[string]int
}

var _ ast.Visitor = (*Translator)(nil)

// New constructs a Translator. Dialect and TypeOracle must be non-nil;
// New panics otherwise, since every visitor method depends on both and a
// nil collaborator would surface as a confusing nil-pointer panic deep in
// a specific function's handler instead of at construction time.
func New(cfg Config) *Translator {
	if cfg.Dialect == nil {
		panic("translator: Config.Dialect must not be nil")
	}
	if cfg.TypeOracle == nil {
		panic("translator: Config.TypeOracle must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	depthCap := cfg.RepeatDepthLimit
	if depthCap <= 0 {
		depthCap = 100
	}
	rootTable := cfg.RootResourceTable
	if rootTable == "" {
		rootTable = "resource"
	}
	t := &Translator{
		dialect:              cfg.Dialect,
		oracle:               cfg.TypeOracle,
		logger:               logger,
		repeatCap:            depthCap,
		toQuantityExtEnabled: cfg.EnableToQuantityExtension,
	}
	t.ctx = context.New(cfg.TypeOracle, rootTable, cfg.RootResourceType)
	t.aliasCounters = make(map[string]int)
	return t
}

// Translate runs the full visitor dispatch over ast and returns the
// ordered fragment list (spec section 4.1). Earlier chain steps precede
// later ones; the final element describes the top-level operation.
func (t *Translator) Translate(root ast.Node) ([]*fragment.Fragment, error) {
	t.ctx.Reset()
	t.fragments = nil
	t.aliasCounters = make(map[string]int)

	result, err := ast.Unwrap(root).Accept(t)
	if err != nil {
		return nil, err
	}
	if len(t.fragments) == 0 || t.fragments[len(t.fragments)-1] != result {
		t.fragments = append(t.fragments, result)
	}

	if t.ctx.HasPendingValues() {
		return nil, fhirpatherr.Translation(fhirpatherr.ErrUnresolvedContainer, "pending_value_not_consumed", root.Text(), t.ctx.JSONPath(),
			"a pending literal or fragment-result slot was left set at the end of translation")
	}
	if t.ctx.ScopeDepth() != 1 {
		return nil, fhirpatherr.Translation(fhirpatherr.ErrUnbalancedScopeStack, "variable_scopes_not_balanced", root.Text(), t.ctx.JSONPath(),
			fmt.Sprintf("expected 1 open variable scope at end of translation, found %d", t.ctx.ScopeDepth()))
	}
	return t.fragments, nil
}

// appendFragment records f as a completed chain step.
func (t *Translator) appendFragment(f *fragment.Fragment) *fragment.Fragment {
	t.fragments = append(t.fragments, f)
	return f
}

// lastUnnestFragment returns the most recently appended chain step that
// flattened an array (RequiresUnnest), or nil if none has been produced
// yet in this translation. Callers use it to detect when a collection
// target is already an unnest's result column, rather than a value that
// still needs one (spec section 4.5).
func (t *Translator) lastUnnestFragment() *fragment.Fragment {
	for i := len(t.fragments) - 1; i >= 0; i-- {
		if t.fragments[i].RequiresUnnest {
			return t.fragments[i]
		}
	}
	return nil
}

// translateChild visits n and returns its fragment without appending it
// to the chain; used for operands that fold into their parent's SQL text.
func (t *Translator) translateChild(n ast.Node) (*fragment.Fragment, error) {
	return ast.Unwrap(n).Accept(t)
}

// newFragment is a thin wrapper over fragment.NewWithSource that converts
// the package's plain error into a translation error carrying context.
func (t *Translator) newFragment(expression string, source string) (*fragment.Fragment, error) {
	f, err := fragment.NewWithSource(expression, source)
	if err != nil {
		return nil, fhirpatherr.Translation(fhirpatherr.ErrEmptyExpression, "fragment_construction_failed", expression, t.ctx.JSONPath(), err.Error())
	}
	return f, nil
}

func (t *Translator) errf(kind fhirpatherr.Kind, code fhirpatherr.ErrorCode, rule, expression, message string, args ...any) *fhirpatherr.TranslationError {
	return fhirpatherr.New(kind, code, rule, expression, t.ctx.JSONPath(), fmt.Sprintf(message, args...))
}

func (t *Translator) validationErr(code fhirpatherr.ErrorCode, rule, expression, message string, args ...any) error {
	return t.errf(fhirpatherr.KindValidation, code, rule, expression, message, args...)
}

func (t *Translator) translationErr(code fhirpatherr.ErrorCode, rule, expression, message string, args ...any) error {
	return t.errf(fhirpatherr.KindTranslation, code, rule, expression, message, args...)
}

func (t *Translator) evaluationErr(code fhirpatherr.ErrorCode, rule, expression, message string, args ...any) error {
	return t.errf(fhirpatherr.KindEvaluation, code, rule, expression, message, args...)
}
