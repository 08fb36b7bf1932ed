// Package typecode implements the type descriptor model: immutable trees
// describing the shape of a dynamically typed record.
//
// Descriptors are built once, typically from a configuration file or a WIT
// definition, and shared by every data object of that type:
//
//	hello := typecode.Must(typecode.NewStruct("HelloWorld",
//		typecode.Member{Name: "sender", Type: typecode.NewString(128), Key: true},
//		typecode.Member{Name: "message", Type: typecode.NewString(1024)},
//		typecode.Member{Name: "count", Type: typecode.Long},
//	))
//
// Introspection calls that do not apply to a descriptor's kind, or that
// address a member that does not exist, fail with a KindTypeIntrospection
// error carrying the DDS exception code (bad kind, bounds, bad member name,
// bad member id).
package typecode
