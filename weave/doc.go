// Package weave splices one method's body into another across module
// boundaries. InjectBefore runs the source body ahead of the target's own
// instructions; InjectAfter runs it behind them. The heavy lifting lives in
// the internal engine; this package resolves the named methods, wires the
// provider, and hands back the modified target method.
package weave
