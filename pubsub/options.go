package pubsub

import dynamicdds "github.com/wippyai/dynamic-dds"

// ReceiveOption narrows what Read and Take return.
type ReceiveOption func(*receiveOptions)

type receiveOptions struct {
	samples    dynamicdds.SampleStateMask
	views      dynamicdds.ViewStateMask
	instances  dynamicdds.InstanceStateMask
	maxSamples int32
}

func defaultReceiveOptions() receiveOptions {
	return receiveOptions{
		samples:    dynamicdds.AnySampleState,
		views:      dynamicdds.AnyViewState,
		instances:  dynamicdds.AnyInstanceState,
		maxSamples: dynamicdds.LengthUnlimited,
	}
}

// WithInstanceStates selects samples whose instance is in one of the
// states in m. The default is any state.
func WithInstanceStates(m dynamicdds.InstanceStateMask) ReceiveOption {
	return func(o *receiveOptions) { o.instances = m }
}

// WithSampleStates selects read or unread samples.
func WithSampleStates(m dynamicdds.SampleStateMask) ReceiveOption {
	return func(o *receiveOptions) { o.samples = m }
}

// WithViewStates selects samples of new or already seen instances.
func WithViewStates(m dynamicdds.ViewStateMask) ReceiveOption {
	return func(o *receiveOptions) { o.views = m }
}

// WithMaxSamples caps the number of samples returned. The default is
// dynamicdds.LengthUnlimited.
func WithMaxSamples(n int32) ReceiveOption {
	return func(o *receiveOptions) { o.maxSamples = n }
}
