package loopback

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/typecode"
)

// compressThreshold is the serialized size above which a sample payload is
// stored zstd-compressed.
const compressThreshold = 4096

// Samples are serialized with Core Deterministic Encoding so equal values
// produce equal bytes, which the instance key hash relies on.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("loopback: CBOR encoder initialization failed: " + err.Error())
	}
	// STRING members only forbid NUL, so text strings may carry any bytes.
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		UTF8:           cbor.UTF8DecodeInvalid,
	}.DecMode()
	if err != nil {
		panic("loopback: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("loopback: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("loopback: zstd decoder initialization failed: " + err.Error())
	}
}

// payload is one serialized sample as stored in reader caches. It is
// immutable once built and shared by every reader of the topic.
type payload struct {
	data       []byte
	compressed bool
	size       int
}

func marshalNode(n *node) (payload, error) {
	raw, err := encMode.Marshal(n.wire())
	if err != nil {
		return payload{}, fmt.Errorf("serialize sample: %w", err)
	}
	p := payload{data: raw, size: len(raw)}
	if len(raw) > compressThreshold {
		if c := zstdEncoder.EncodeAll(raw, nil); len(c) < len(raw) {
			p.data = c
			p.compressed = true
		}
	}
	return p, nil
}

func unmarshalNode(tc *typecode.TypeCode, p payload) (*node, error) {
	raw := p.data
	if p.compressed {
		var err error
		raw, err = zstdDecoder.DecodeAll(p.data, make([]byte, 0, p.size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
	}
	var v any
	if err := decMode.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("deserialize sample: %w", err)
	}
	return fromWire(tc, v)
}

// keyHash derives the instance handle from the key members of a top-level
// struct: the first 16 bytes of BLAKE3 over their deterministic CBOR. Types
// without key members map every sample to one instance.
func keyHash(n *node) (dynamicdds.InstanceHandle, error) {
	keys := map[string]any{}
	if n.tc.Kind() == typecode.KindStruct {
		for i, m := range n.tc.Members() {
			if m.Key {
				keys[m.Name] = n.kids[i].wire()
			}
		}
	}
	raw, err := encMode.Marshal(keys)
	if err != nil {
		return dynamicdds.HandleNil, fmt.Errorf("serialize key: %w", err)
	}
	sum := blake3.Sum256(raw)
	h := dynamicdds.InstanceHandle{Valid: true}
	copy(h.KeyHash[:], sum[:16])
	return h, nil
}
