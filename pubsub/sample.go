package pubsub

import (
	"time"

	dynamicdds "github.com/wippyai/dynamic-dds"
)

// Sample is one received update. Value is nil for samples that only carry
// an instance state change, such as a dispose or an unregister.
type Sample struct {
	Info  SampleInfo
	Value any
}

// SampleInfo is the delivery metadata of a Sample.
type SampleInfo struct {
	SourceTimestamp    time.Time
	ReceptionTimestamp time.Time

	InstanceHandle    dynamicdds.InstanceHandle
	PublicationHandle dynamicdds.InstanceHandle

	PublicationSequenceNumber int64
	ReceptionSequenceNumber   int64

	DisposedGenerationCount  int32
	NoWritersGenerationCount int32
	SampleRank               int32
	GenerationRank           int32
	AbsoluteGenerationRank   int32

	SampleState   dynamicdds.SampleStateKind
	ViewState     dynamicdds.ViewStateKind
	InstanceState dynamicdds.InstanceStateKind
	ValidData     bool
}

func sampleInfo(in *dynamicdds.SampleInfo) SampleInfo {
	return SampleInfo{
		SourceTimestamp:           timeOf(in.SourceTimestamp),
		ReceptionTimestamp:        timeOf(in.ReceptionTimestamp),
		InstanceHandle:            in.InstanceHandle,
		PublicationHandle:         in.PublicationHandle,
		PublicationSequenceNumber: in.PublicationSequenceNumber.Int64(),
		ReceptionSequenceNumber:   in.ReceptionSequenceNumber.Int64(),
		DisposedGenerationCount:   in.DisposedGenerationCount,
		NoWritersGenerationCount:  in.NoWritersGenerationCount,
		SampleRank:                in.SampleRank,
		GenerationRank:            in.GenerationRank,
		AbsoluteGenerationRank:    in.AbsoluteGenerationRank,
		SampleState:               in.SampleState,
		ViewState:                 in.ViewState,
		InstanceState:             in.InstanceState,
		ValidData:                 in.ValidData,
	}
}

func timeOf(t dynamicdds.Time) time.Time {
	return time.Unix(int64(t.Sec), int64(t.Nanosec))
}
