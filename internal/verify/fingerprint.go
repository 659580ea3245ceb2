// Package verify compares layers of two containers by record count and
// content fingerprint.
package verify

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"

	"github.com/fgdb2gpkg/fgdb2gpkg/pkg/types"
)

// Value tags keep values of different kinds from hashing alike.
const (
	tagNull byte = iota
	tagInt
	tagReal
	tagText
	tagBlob
	tagGeometry
	tagNoGeometry
)

// Fingerprint is an order-sensitive 128-bit murmur3 digest of a layer's
// field names, values and geometry bytes.
type Fingerprint struct {
	Hi, Lo uint64
}

// String renders the fingerprint as 32 hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x%016x", f.Hi, f.Lo)
}

// Of computes the fingerprint of a layer. Values are first normalized the
// way the GeoPackage store keeps them, so a layer and its converted copy
// hash alike.
func Of(layer *types.Layer) Fingerprint {
	h := murmur3.New128()
	var buf [9]byte

	for _, f := range layer.Fields {
		writeBytes(h, tagText, []byte(f.Name))
	}

	for _, rec := range layer.Records {
		for i, f := range layer.Fields {
			var v interface{}
			if i < len(rec.Values) {
				v = types.StorageValue(f.Type, rec.Values[i])
			}
			switch x := v.(type) {
			case nil:
				h.Write([]byte{tagNull})
			case int64:
				buf[0] = tagInt
				binary.LittleEndian.PutUint64(buf[1:], uint64(x))
				h.Write(buf[:])
			case float64:
				buf[0] = tagReal
				binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(x))
				h.Write(buf[:])
			case string:
				writeBytes(h, tagText, []byte(x))
			case []byte:
				writeBytes(h, tagBlob, x)
			default:
				writeBytes(h, tagText, []byte(fmt.Sprint(x)))
			}
		}
		if rec.Geometry == nil {
			h.Write([]byte{tagNoGeometry})
		} else {
			writeBytes(h, tagGeometry, rec.Geometry)
		}
	}

	hi, lo := h.Sum128()
	return Fingerprint{Hi: hi, Lo: lo}
}

// writeBytes writes a tagged, length-prefixed byte string.
func writeBytes(h murmur3.Hash128, tag byte, b []byte) {
	var hdr [9]byte
	hdr[0] = tag
	binary.LittleEndian.PutUint64(hdr[1:], uint64(len(b)))
	h.Write(hdr[:])
	h.Write(b)
}
