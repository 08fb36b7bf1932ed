// Package errors provides structured error types for the dynamic-dds module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Errors surfaced by the middleware additionally carry the DDS
// return code (Code) and type introspection failures carry the exception
// sub-code (Exception).
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("position", "x").
//		GoType("string").
//		TypeKind("DOUBLE").
//		Detail("cannot convert string to number").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.FromReturnCode(errors.PhasePublish, errors.RetcodeNotEnabled, "writer disabled")
//	err := errors.Introspection(errors.ExBadMemberName, "no member %q", name)
//
// Match categories with errors.Is and the package sentinels; zero-valued
// fields of the target act as wildcards:
//
//	if errors.Is(err, errors.ErrRange) { ... }
//	if errors.Is(err, &errors.Error{Code: errors.RetcodeOutOfResources}) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
