// Package errors provides structured error types for the il-weaver library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Use the Builder for structured construction:
//
//	err := errors.New(errors.PhaseTransfuse, errors.KindUnsupported).
//		Path("Demo.App::Main").
//		Detail("operand %T", op).
//		Build()
//
// Or the convenience constructors for the common cases:
//
//	err := errors.NotFound(errors.PhaseResolve, "Demo.App::Main", "app")
//	err := errors.Unresolved(errors.PhaseTransfuse, "method Demo.Log::Write")
//
// All errors implement the standard error interface and support
// errors.Is/As; a target with a zero Phase or Kind matches any value of
// that field.
package errors
