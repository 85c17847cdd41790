// Package il provides the in-memory model for CLI-style stack-machine
// method bodies: modules, type/field/method declarations, instruction
// streams with offset-addressed operands, local variable slots, and
// structured exception handler regions.
//
// The package also implements the binary module container (Encode/Decode)
// used by tooling to load and save modules, plus body validation and a
// disassembler. The splice engine in weave/internal/engine operates purely
// on this model and never touches the container format.
package il
