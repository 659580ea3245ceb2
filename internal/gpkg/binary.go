package gpkg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/fgdb2gpkg/fgdb2gpkg/pkg/types"
)

// GeoPackage binary header layout (GeoPackage 1.3, clause 2.1.3).
const (
	headerMagic0  = 'G'
	headerMagic1  = 'P'
	headerVersion = 0

	flagLittleEndian = 0x01
	flagEmpty        = 0x10
	flagExtended     = 0x20
	envelopeShift    = 1
	envelopeMask     = 0x0E

	envelopeNone = 0
	envelopeXY   = 1
)

var (
	ErrNotGeoPackageBinary = errors.New("gpkg: not a GeoPackage geometry blob")
	ErrExtendedGeometry    = errors.New("gpkg: extended GeoPackage geometries are not supported")
)

// envelopeSizes maps the envelope indicator to the number of doubles.
var envelopeSizes = map[byte]int{0: 0, 1: 4, 2: 6, 3: 6, 4: 8}

// Envelope is a 2D bounding box.
type Envelope struct {
	MinX, MaxX, MinY, MaxY float64
}

// Extend grows e to cover o.
func (e *Envelope) Extend(o Envelope) {
	e.MinX = math.Min(e.MinX, o.MinX)
	e.MaxX = math.Max(e.MaxX, o.MaxX)
	e.MinY = math.Min(e.MinY, o.MinY)
	e.MaxY = math.Max(e.MaxY, o.MaxY)
}

// envelopeOf decodes the WKB and returns its XY envelope.
// ok is false for empty geometries.
func envelopeOf(data []byte) (env Envelope, ok bool, err error) {
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return Envelope{}, false, fmt.Errorf("gpkg: decode WKB: %w", err)
	}
	b := g.Bounds()
	if b == nil || b.IsEmpty() {
		return Envelope{}, false, nil
	}
	env = Envelope{MinX: b.Min(0), MaxX: b.Max(0), MinY: b.Min(1), MaxY: b.Max(1)}
	// Empty points are encoded as NaN coordinates.
	if math.IsNaN(env.MinX) || math.IsNaN(env.MinY) || math.IsNaN(env.MaxX) || math.IsNaN(env.MaxY) {
		return Envelope{}, false, nil
	}
	return env, true, nil
}

// EncodeGeometry wraps WKB in a GeoPackage binary header. ISO WKB is copied
// verbatim after the header; WKB flagging Z or M with the high type bits is
// rewritten with ISO type codes first. The returned envelope is nil for empty
// geometries.
func EncodeGeometry(data []byte, srsID int32) ([]byte, *Envelope, error) {
	data, err := types.ISOWKB(data)
	if err != nil {
		return nil, nil, fmt.Errorf("gpkg: %w", err)
	}
	env, ok, err := envelopeOf(data)
	if err != nil {
		return nil, nil, err
	}

	flags := byte(flagLittleEndian)
	headerLen := 8
	if ok {
		flags |= envelopeXY << envelopeShift
		headerLen += 32
	} else {
		flags |= flagEmpty
	}

	out := make([]byte, headerLen, headerLen+len(data))
	out[0] = headerMagic0
	out[1] = headerMagic1
	out[2] = headerVersion
	out[3] = flags
	binary.LittleEndian.PutUint32(out[4:8], uint32(srsID))
	if ok {
		binary.LittleEndian.PutUint64(out[8:16], math.Float64bits(env.MinX))
		binary.LittleEndian.PutUint64(out[16:24], math.Float64bits(env.MaxX))
		binary.LittleEndian.PutUint64(out[24:32], math.Float64bits(env.MinY))
		binary.LittleEndian.PutUint64(out[32:40], math.Float64bits(env.MaxY))
	}
	out = append(out, data...)

	if !ok {
		return out, nil, nil
	}
	return out, &env, nil
}

// Header is the decoded GeoPackage binary header.
type Header struct {
	SRSID    int32
	Empty    bool
	Envelope []float64
}

// DecodeGeometry splits a GeoPackage geometry blob into its header and the
// embedded WKB.
func DecodeGeometry(blob []byte) (*Header, []byte, error) {
	if len(blob) < 8 || blob[0] != headerMagic0 || blob[1] != headerMagic1 {
		return nil, nil, ErrNotGeoPackageBinary
	}
	if blob[2] != headerVersion {
		return nil, nil, fmt.Errorf("gpkg: unsupported binary version %d", blob[2])
	}
	flags := blob[3]
	if flags&flagExtended != 0 {
		return nil, nil, ErrExtendedGeometry
	}

	var order binary.ByteOrder = binary.BigEndian
	if flags&flagLittleEndian != 0 {
		order = binary.LittleEndian
	}

	indicator := (flags & envelopeMask) >> envelopeShift
	n, ok := envelopeSizes[indicator]
	if !ok {
		return nil, nil, fmt.Errorf("gpkg: invalid envelope indicator %d", indicator)
	}
	end := 8 + n*8
	if len(blob) < end {
		return nil, nil, fmt.Errorf("gpkg: truncated header: need %d bytes, have %d", end, len(blob))
	}

	h := &Header{
		SRSID: int32(order.Uint32(blob[4:8])),
		Empty: flags&flagEmpty != 0,
	}
	for i := 0; i < n; i++ {
		off := 8 + i*8
		h.Envelope = append(h.Envelope, math.Float64frombits(order.Uint64(blob[off:off+8])))
	}
	return h, blob[end:], nil
}

// UnmarshalGeometry decodes a GeoPackage geometry blob into a geometry value.
func UnmarshalGeometry(blob []byte) (geom.T, error) {
	_, data, err := DecodeGeometry(blob)
	if err != nil {
		return nil, err
	}
	return wkb.Unmarshal(data)
}
