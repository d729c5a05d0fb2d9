package export

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
)

// floatBits carries a NaN or infinity as its raw IEEE 754 bit pattern,
// which JSON numbers cannot hold.
type floatBits struct {
	Bits string `json:"bits"`
}

type vectorJSON struct {
	X json.RawMessage `json:"x"`
	Y json.RawMessage `json:"y"`
	Z json.RawMessage `json:"z"`
}

func nonFinite(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

func marshalFloat32(f float32) ([]byte, error) {
	if nonFinite(float64(f)) {
		return json.Marshal(floatBits{Bits: fmt.Sprintf("0x%08x", math.Float32bits(f))})
	}
	return json.Marshal(f)
}

func marshalFloat64(f float64) ([]byte, error) {
	if nonFinite(f) {
		return json.Marshal(floatBits{Bits: fmt.Sprintf("0x%016x", math.Float64bits(f))})
	}
	return json.Marshal(f)
}

func marshalVector(v record.Vector3) ([]byte, error) {
	var out vectorJSON
	for _, c := range []struct {
		dst *json.RawMessage
		f   float32
	}{{&out.X, v.X}, {&out.Y, v.Y}, {&out.Z, v.Z}} {
		b, err := marshalFloat32(c.f)
		if err != nil {
			return nil, err
		}
		*c.dst = b
	}
	return json.Marshal(out)
}

// decodeBits reads the {"bits": "0x..."} form of a float of the given
// width in bits.
func decodeBits(raw []byte, width int) (uint64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var fb floatBits
	if err := dec.Decode(&fb); err != nil {
		return 0, err
	}
	if fb.Bits == "" {
		return 0, fmt.Errorf("float object without bits")
	}
	return strconv.ParseUint(fb.Bits, 0, width)
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func decodeFloat32(raw []byte) (float32, error) {
	if isObject(raw) {
		bits, err := decodeBits(raw, 32)
		if err != nil {
			return 0, err
		}
		return math.Float32frombits(uint32(bits)), nil
	}

	var f float32
	err := json.Unmarshal(raw, &f)
	return f, err
}

func decodeFloat64(raw []byte) (float64, error) {
	if isObject(raw) {
		bits, err := decodeBits(raw, 64)
		if err != nil {
			return 0, err
		}
		return math.Float64frombits(bits), nil
	}

	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}

func decodeVector(raw []byte) (record.Vector3, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var in vectorJSON
	if err := dec.Decode(&in); err != nil {
		return record.Vector3{}, err
	}

	var v record.Vector3
	for _, c := range []struct {
		dst *float32
		raw json.RawMessage
	}{{&v.X, in.X}, {&v.Y, in.Y}, {&v.Z, in.Z}} {
		if len(c.raw) == 0 {
			continue
		}
		f, err := decodeFloat32(c.raw)
		if err != nil {
			return record.Vector3{}, err
		}
		*c.dst = f
	}
	return v, nil
}
