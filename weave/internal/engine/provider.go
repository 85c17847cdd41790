package engine

import (
	"github.com/wippyai/il-weaver/il"
)

// Provider supplies method lookup, reference resolution, and cross-module
// import to the pipeline. il.ModuleSet is the standard implementation.
type Provider interface {
	// FindMethod locates a method by full name within a module.
	FindMethod(m *il.Module, fullName string) (*il.Method, error)
	// Resolve maps a reference to its defining declaration.
	Resolve(ref *il.MemberRef) (il.Declaration, error)
	// Import records decl in m's reference table and returns the owning
	// reference. Import must be idempotent per declaration per module.
	Import(m *il.Module, decl il.Declaration) (*il.MemberRef, error)
}
