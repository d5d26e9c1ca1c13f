// Package context implements the mutable translation state a Translator
// threads through a single AST traversal: the current source table,
// resource type, path stack, scoped variable bindings, CTE counter, and
// two single-consumer pending-value slots (a literal and a fragment
// result). The translator's visitors do not currently set either slot.
//
// A Context is owned by exactly one translation call; it is not safe for
// concurrent use.
package context

import (
	"fmt"
	"strings"

	"github.com/fhirsql/fhirpath2sql/internal/fragment"
	"github.com/fhirsql/fhirpath2sql/internal/typeoracle"
)

// VariableBinding records what a lambda/user variable ($this, $index,
// $total, or a user %variable) currently refers to.
type VariableBinding struct {
	Expression     string
	SourceTable    string
	RequiresUnnest bool
	IsAggregate    bool
	Dependencies   []string
}

// PendingFragmentResult is the value of the single-consumer fragment-result
// slot: a fragment plus whether it is a statically multi-item collection.
// No translator visitor sets this slot.
type PendingFragmentResult struct {
	Fragment    *fragment.Fragment
	IsMultiItem bool
}

type pendingLiteral struct {
	raw string
	sql string
}

// Context is the per-translation mutable state.
type Context struct {
	oracle typeoracle.Oracle

	CurrentTable        string
	CurrentResourceType string
	parentPath          []string

	scopes []map[string]VariableBinding // index 0 is the root scope

	cteCounter int

	currentElementColumn string
	hasElementColumn      bool
	currentElementType    string

	pendingLiteral  *pendingLiteral
	pendingFragment *PendingFragmentResult

	cteColumnAliases map[string]string
}

// New creates a Context for a single translation call. rootTable is the
// table the root resource is read from (default "resource" if empty);
// rootResourceType seeds $this's global binding and the leading
// component of path skipping (spec section 4.3).
func New(oracle typeoracle.Oracle, rootTable, rootResourceType string) *Context {
	if rootTable == "" {
		rootTable = "resource"
	}
	c := &Context{
		oracle:              oracle,
		CurrentTable:        rootTable,
		CurrentResourceType: rootResourceType,
		cteColumnAliases:    make(map[string]string),
	}
	c.scopes = []map[string]VariableBinding{rootThisScope(rootTable)}
	return c
}

func rootThisScope(rootTable string) map[string]VariableBinding {
	return map[string]VariableBinding{
		"$this": {Expression: rootTable + ".resource", SourceTable: rootTable},
	}
}

// NextCTEName returns "cte_N" for a monotonically increasing, 1-based N.
func (c *Context) NextCTEName() string {
	c.cteCounter++
	return fmt.Sprintf("cte_%d", c.cteCounter)
}

// CTECounter reports the current counter value without advancing it.
func (c *Context) CTECounter() int { return c.cteCounter }

// PushPath appends a path component (spec section 4.3: "Each component
// pushed onto parent_path").
func (c *Context) PushPath(component string) {
	c.parentPath = append(c.parentPath, component)
}

// PopPath removes and returns the last path component. It returns
// ok=false (never panics) when the path is already empty.
func (c *Context) PopPath() (component string, ok bool) {
	if len(c.parentPath) == 0 {
		return "", false
	}
	last := len(c.parentPath) - 1
	component = c.parentPath[last]
	c.parentPath = c.parentPath[:last]
	return component, true
}

// ParentPath returns a snapshot of the current path components.
func (c *Context) ParentPath() []string {
	return append([]string(nil), c.parentPath...)
}

// JSONPath builds the "$.a.b[*].c" style path spec section 4.3 describes,
// consulting the TypeOracle's IsArrayElement at each incremental prefix
// to decide whether to append an "[*]" array marker.
func (c *Context) JSONPath() string {
	var b strings.Builder
	b.WriteString("$")
	parentType := c.CurrentResourceType
	prefix := ""
	for _, comp := range c.parentPath {
		b.WriteString(".")
		b.WriteString(comp)
		if prefix == "" {
			prefix = comp
		} else {
			prefix = prefix + "." + comp
		}
		if c.oracle != nil && c.oracle.IsArrayElement(parentType, prefix) {
			b.WriteString("[*]")
		}
	}
	return b.String()
}

// PushVariableScope opens a new lambda scope. When preserveThis is true,
// the new scope starts with a copy of the enclosing $this binding; either
// way GetVariable walks outward, so an unshadowed $this still resolves to
// the enclosing binding. The translator's lambda bodies pass false and
// bind $this themselves right away.
func (c *Context) PushVariableScope(preserveThis bool) {
	scope := make(map[string]VariableBinding)
	if preserveThis {
		if b, ok := c.GetVariable("$this"); ok {
			scope["$this"] = b
		}
	}
	c.scopes = append(c.scopes, scope)
}

// PopVariableScope closes the innermost scope. Popping the root scope is
// a translation-time contract violation: the root $this binding must
// always exist.
func (c *Context) PopVariableScope() error {
	if len(c.scopes) <= 1 {
		return fmt.Errorf("context: cannot pop root variable scope")
	}
	c.scopes = c.scopes[:len(c.scopes)-1]
	return nil
}

// BindVariable binds name in the innermost scope.
func (c *Context) BindVariable(name string, binding VariableBinding) {
	c.scopes[len(c.scopes)-1][name] = binding
}

// GetVariable resolves name from the innermost scope outward.
func (c *Context) GetVariable(name string) (VariableBinding, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if b, ok := c.scopes[i][name]; ok {
			return b, true
		}
	}
	return VariableBinding{}, false
}

// ClearVariables removes every binding in every scope except the root
// scope's $this.
func (c *Context) ClearVariables() {
	root := c.scopes[0]
	this, hasThis := root["$this"]
	c.scopes = c.scopes[:1]
	c.scopes[0] = make(map[string]VariableBinding)
	if hasThis {
		c.scopes[0]["$this"] = this
	}
}

// ScopeSnapshot is an opaque whole-stack save point produced by
// SnapshotVariableScopes.
type ScopeSnapshot struct {
	scopes []map[string]VariableBinding
}

// SnapshotVariableScopes deep-copies the entire scope stack for later
// restoration around type-cast children and union-operand translations
// (spec section 5: "Scoped acquisition").
func (c *Context) SnapshotVariableScopes() ScopeSnapshot {
	copied := make([]map[string]VariableBinding, len(c.scopes))
	for i, scope := range c.scopes {
		m := make(map[string]VariableBinding, len(scope))
		for k, v := range scope {
			m[k] = v
		}
		copied[i] = m
	}
	return ScopeSnapshot{scopes: copied}
}

// RestoreVariableScopes replaces the entire scope stack with a prior
// snapshot.
func (c *Context) RestoreVariableScopes(s ScopeSnapshot) {
	c.scopes = s.scopes
}

// Snapshot is a plain value-copy of the scalar fields spec section 9
// calls out for context snapshot/restore around type-cast children:
// table, path, counter, element-column, element-type. It deliberately
// does NOT include the variable-scope stack, which is managed separately
// by SnapshotVariableScopes/RestoreVariableScopes -- conflating the two
// causes correctness bugs in nested lambdas.
type Snapshot struct {
	table                 string
	resourceType          string
	parentPath            []string
	cteCounter            int
	currentElementColumn  string
	hasElementColumn      bool
	currentElementType    string
}

// TakeSnapshot captures the scalar fields described by Snapshot.
func (c *Context) TakeSnapshot() Snapshot {
	return Snapshot{
		table:                c.CurrentTable,
		resourceType:         c.CurrentResourceType,
		parentPath:           append([]string(nil), c.parentPath...),
		cteCounter:           c.cteCounter,
		currentElementColumn: c.currentElementColumn,
		hasElementColumn:     c.hasElementColumn,
		currentElementType:   c.currentElementType,
	}
}

// Restore writes a previously captured Snapshot back into the context.
func (c *Context) Restore(s Snapshot) {
	c.CurrentTable = s.table
	c.CurrentResourceType = s.resourceType
	c.parentPath = append([]string(nil), s.parentPath...)
	c.cteCounter = s.cteCounter
	c.currentElementColumn = s.currentElementColumn
	c.hasElementColumn = s.hasElementColumn
	c.currentElementType = s.currentElementType
}

// SetCurrentElementColumn transitions the current_element_column state
// machine (spec section 4.6) from none to active.
func (c *Context) SetCurrentElementColumn(column, elementType string) {
	c.currentElementColumn = column
	c.hasElementColumn = true
	c.currentElementType = elementType
}

// ClearCurrentElementColumn transitions back to the none state.
func (c *Context) ClearCurrentElementColumn() {
	c.currentElementColumn = ""
	c.hasElementColumn = false
	c.currentElementType = ""
}

// CurrentElementColumn returns the active element column and type, and
// whether the state machine is currently in the active state.
func (c *Context) CurrentElementColumn() (column, elementType string, active bool) {
	return c.currentElementColumn, c.currentElementType, c.hasElementColumn
}

// SetPendingLiteralValue stores the single-consumer literal slot. The
// translator's VisitLiteral does not call it; literal type and value
// travel in fragment metadata instead.
func (c *Context) SetPendingLiteralValue(raw, sql string) {
	c.pendingLiteral = &pendingLiteral{raw: raw, sql: sql}
}

// TakePendingLiteralValue reads and clears the pending literal slot.
func (c *Context) TakePendingLiteralValue() (raw, sql string, ok bool) {
	if c.pendingLiteral == nil {
		return "", "", false
	}
	p := c.pendingLiteral
	c.pendingLiteral = nil
	return p.raw, p.sql, true
}

// SetPendingFragmentResult stores the single-consumer fragment-result
// slot a significant operation leaves for its caller.
func (c *Context) SetPendingFragmentResult(r PendingFragmentResult) {
	c.pendingFragment = &r
}

// TakePendingFragmentResult reads and clears the pending fragment slot.
func (c *Context) TakePendingFragmentResult() (PendingFragmentResult, bool) {
	if c.pendingFragment == nil {
		return PendingFragmentResult{}, false
	}
	r := *c.pendingFragment
	c.pendingFragment = nil
	return r, true
}

// RegisterColumnAlias records the alias a unnest fragment registered for
// a CTE-produced column (spec section 4.3).
func (c *Context) RegisterColumnAlias(key, alias string) {
	c.cteColumnAliases[key] = alias
}

// ResolveColumnAlias looks up a previously registered alias, falling
// back to returning key itself if none was registered.
func (c *Context) ResolveColumnAlias(key string) string {
	if alias, ok := c.cteColumnAliases[key]; ok {
		return alias
	}
	return key
}

// ClearColumnAliases discards every registered alias.
func (c *Context) ClearColumnAliases() {
	c.cteColumnAliases = make(map[string]string)
}

// HasPendingValues reports whether either single-consumer slot is still
// set; used by the translator's post-condition check (spec section 8:
// "after translate returns, no pending-value slot set").
func (c *Context) HasPendingValues() bool {
	return c.pendingLiteral != nil || c.pendingFragment != nil
}

// ScopeDepth reports how many variable scopes are currently open; used
// to assert scopes are balanced on every exit path (spec section 8).
func (c *Context) ScopeDepth() int { return len(c.scopes) }

// Reset returns the context to its post-construction state for a fresh
// translate() call, preserving only the root scope's $this binding
// (spec section 3: "reset() returns to 0 preserving only global $this
// binding").
func (c *Context) Reset() {
	root := c.scopes[0]
	this, hasThis := root["$this"]
	c.scopes = []map[string]VariableBinding{make(map[string]VariableBinding)}
	if hasThis {
		c.scopes[0]["$this"] = this
	} else {
		c.scopes[0]["$this"] = VariableBinding{Expression: c.CurrentTable + ".resource", SourceTable: c.CurrentTable}
	}
	c.parentPath = nil
	c.cteCounter = 0
	c.ClearCurrentElementColumn()
	c.pendingLiteral = nil
	c.pendingFragment = nil
	c.cteColumnAliases = make(map[string]string)
}
