// Package pubsub exchanges Go values over a dynamic-data middleware.
//
// A Participant wraps a dynamicdds.Middleware and hands out Writers and
// Readers by their full entity names:
//
//	p := pubsub.New(mw)
//	defer p.Close()
//
//	w, err := p.LookupWriter("MyPublisher::HelloWorldWriter")
//	if err != nil {
//	    return err
//	}
//	err = w.Write(map[string]any{"sender": "5", "message": "42", "count": int32(7)})
//
//	r, err := p.LookupReader("MySubscriber::HelloWorldReader")
//	samples, err := r.Take()
//
// Writers keep one reusable data object. Write clears it before encoding
// the value, so members missing from the value go back to their defaults.
// Dispose and Unregister encode on top of what is already there.
//
// Readers borrow a loan from the middleware for every Read or Take, decode
// each sample and hand the loan back before returning, including when
// decoding fails. Nothing to read is not an error: the result is empty.
//
// Data-available callbacks run on a middleware goroutine. The first
// registered callback installs the middleware listener and removing the
// last one uninstalls it.
//
// Writers and Readers hold only a weak reference to their Participant.
// Once the Participant is closed, or collected, their operations fail with
// an error of kind closed.
package pubsub
