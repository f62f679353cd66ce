package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/llir/llvm/ir/value"
)

type SymbolKind int

const (
	SymGlobal SymbolKind = iota // module-level global (built-in constants)
	SymLocal                    // stack storage owned by one function
	SymFunc                     // callable function
)

func (k SymbolKind) String() string {
	switch k {
	case SymGlobal:
		return "global"
	case SymLocal:
		return "local"
	case SymFunc:
		return "func"
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// Symbol binds a name to its storage (alloca or global) or to a function.
// For functions Type is the return type and Params the parameter types.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Value  value.Value
	Type   Type
	Params []Type
}

// ScopeID is a handle into a SymbolTable.
type ScopeID int

// NoScope is the parent of the root scope.
const NoScope ScopeID = -1

type scopeRecord struct {
	parent  ScopeID
	owner   string // function whose frame holds this scope's locals
	entries map[string]Symbol
}

// SymbolTable is an arena of scopes. A scope is created for every function
// body and dropped whole once the body is generated; entries are never
// removed one by one. The root scope holds the built-ins.
type SymbolTable struct {
	scopes []scopeRecord
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		scopes: []scopeRecord{{parent: NoScope, entries: make(map[string]Symbol)}},
	}
}

// Root returns the scope holding built-ins.
func (s *SymbolTable) Root() ScopeID {
	return 0
}

// EnterFunction creates the scope of a function body named owner.
func (s *SymbolTable) EnterFunction(parent ScopeID, owner string) ScopeID {
	s.scopes = append(s.scopes, scopeRecord{
		parent:  parent,
		owner:   owner,
		entries: make(map[string]Symbol),
	})
	return ScopeID(len(s.scopes) - 1)
}

// ExitFunction drops every binding of the scope. The handle stays valid but
// resolves nothing afterwards.
func (s *SymbolTable) ExitFunction(id ScopeID) {
	if s.valid(id) {
		s.scopes[id].entries = nil
	}
}

func (s *SymbolTable) valid(id ScopeID) bool {
	return id >= 0 && int(id) < len(s.scopes)
}

// Owner returns the function that owns scope id.
func (s *SymbolTable) Owner(id ScopeID) string {
	if !s.valid(id) {
		return ""
	}
	return s.scopes[id].owner
}

// Define binds sym in scope id, replacing any binding of the same name there.
func (s *SymbolTable) Define(id ScopeID, sym Symbol) {
	if !s.valid(id) || s.scopes[id].entries == nil {
		panic(fmt.Sprintf("Define(%q) on dropped scope %d", sym.Name, id))
	}
	s.scopes[id].entries[sym.Name] = sym
}

// LookupLocal searches scope id only.
func (s *SymbolTable) LookupLocal(id ScopeID, name string) (Symbol, bool) {
	if !s.valid(id) {
		return Symbol{}, false
	}
	sym, ok := s.scopes[id].entries[name]
	return sym, ok
}

// Lookup walks outward from id. Locals bound by a different function are
// skipped: a frame can only address its own storage.
func (s *SymbolTable) Lookup(id ScopeID, name string) (Symbol, bool) {
	owner := s.Owner(id)
	for cur := id; s.valid(cur); cur = s.scopes[cur].parent {
		sym, ok := s.scopes[cur].entries[name]
		if !ok {
			continue
		}
		if sym.Kind == SymLocal && s.scopes[cur].owner != owner {
			continue
		}
		return sym, true
	}
	return Symbol{}, false
}

// String lists every live scope and its bindings, sorted by name.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	for i, rec := range s.scopes {
		if rec.entries == nil {
			continue
		}
		owner := rec.owner
		if owner == "" {
			owner = "<root>"
		}
		fmt.Fprintf(&sb, "scope %d (%s, parent %d)\n", i, owner, rec.parent)

		names := make([]string, 0, len(rec.entries))
		for name := range rec.entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sym := rec.entries[name]
			fmt.Fprintf(&sb, "  %-12s %-6s %s\n", name, sym.Kind, sym.Type)
		}
	}
	return sb.String()
}
