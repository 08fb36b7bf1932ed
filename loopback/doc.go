// Package loopback is an in-process middleware implementing the dynamicdds
// interfaces. It backs tests, examples and the ddsspy tool, and shows what a
// binding to a real DDS implementation has to provide.
//
// A Network connects participants; writers and readers match on domain id
// and topic name:
//
//	net := loopback.NewNetwork()
//	pub := net.CreateParticipant("pub", 0)
//	sub := net.CreateParticipant("sub", 0)
//	w, _ := pub.CreateWriter("P::W", "Hello", helloType)
//	r, _ := sub.CreateReader("S::R", "Hello", helloType, loopback.ReaderQoS{HistoryDepth: 10})
//
// or from a participant library:
//
//	p, err := net.CreateParticipantFromConfig(lib, "MyParticipantLibrary::PublicationParticipant")
//
// # Samples
//
// A write serializes the data object with deterministic CBOR (zstd
// compressed above 4 KiB) and hands the payload to every matched reader.
// The instance handle is a BLAKE3 hash of the key members. Each reader keeps
// a KEEP_LAST history per instance and tracks instance, view and sample
// states the way DDS does, including generation counts and ranks.
//
// Read and Take rebuild the payloads into fresh data objects lent to the
// caller. Loaned objects are read-only and cannot be deleted until the loan
// is returned; a reader refuses new loans with OUT_OF_RESOURCES once
// MaxOutstandingLoans are unreturned.
//
// # Objects
//
// Data objects, transient strings and loans live in a per-participant
// resource table. Stats reports how many are outstanding, which tests use
// to prove that nothing leaks.
//
// # Listeners
//
// SetListener starts a goroutine per installed listener. Notifications that
// arrive while the listener runs coalesce, so a listener should drain the
// reader with Take rather than assume one call per sample.
package loopback
