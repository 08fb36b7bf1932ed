// Package dynamicdds publishes and consumes dynamically typed records over a
// DDS-style publish-subscribe middleware without generated per-type code.
// The record shape is discovered at runtime from a type descriptor.
//
// # Architecture Overview
//
//	dynamicdds/          Root package with the narrow middleware interfaces
//	├── typecode/        Immutable type descriptors and introspection
//	├── dynamic/         Cursor and marshalling engine (Go values <-> Data)
//	├── pubsub/          Participant, Writer, Reader and data-available callbacks
//	├── loopback/        In-process middleware implementing the interfaces
//	├── config/          Participant library files (YAML or TOML)
//	├── resource/        Handle table with borrow tracking
//	├── errors/          Structured error types with DDS return codes
//	└── cmd/ddsspy/      Command line publisher and monitor
//
// # Quick Start
//
//	lib, err := config.Load("hello.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	network := loopback.NewNetwork()
//	mw, err := network.CreateParticipantFromConfig(lib, "MyParticipantLibrary::Zero")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p := pubsub.New(mw)
//	defer p.Close()
//
//	w, _ := p.LookupWriter("MyPublisher::HelloWorldWriter")
//	r, _ := p.LookupReader("MySubscriber::HelloWorldReader")
//
//	_ = w.Write(map[string]any{"sender": "5", "message": "42", "count": 7})
//	samples, _ := r.Take()
//
// # Value Mapping
//
//	STRUCT                 map[string]any (encode is sparse, decode is dense)
//	SEQUENCE, ARRAY        []any or any slice/array; elements use 1-based ids
//	sequence<octet>        []byte (bulk path)
//	STRING, WSTRING        string (STRING rejects embedded NUL)
//	SHORT..ULONGLONG       any Go integer, integral float or *big.Int within range
//	FLOAT, DOUBLE          float32, float64 or any integer
//	BOOLEAN                bool
//	CHAR, WCHAR            byte or rune, or a one-character string
//	OCTET                  uint8 in [0, 256)
//	ENUM                   int32 ordinal or enumerator name
//
// # Error Handling
//
// Errors carry a Phase, a Kind and, where the middleware reported one, a DDS
// return code:
//
//	var e *errors.Error
//	if stderrors.As(err, &e) {
//	    fmt.Printf("phase=%s kind=%s code=%s\n", e.Phase, e.Kind, e.Code)
//	}
package dynamicdds
