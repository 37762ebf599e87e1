// Package errors provides structured error types for the native bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the native entry point name, a field path and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDispatch, errors.KindTrap).
//		Entry("proxy_dispatch").
//		Detail("guest trapped in capability %q", "greet").
//		Cause(cause).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MissingExport("overlay_created")
//	err := errors.StaleOwner("proxy_dispatch", 0x100000002)
//
// All errors implement the standard error interface and support errors.Is/As.
//
// The bridges themselves never produce or wrap these errors around native
// failures: a forward returns whatever the native side returned. These types
// describe failures of the native sides shipped with the module and of the
// surrounding tooling.
package errors
