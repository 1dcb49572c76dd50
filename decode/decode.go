package decode

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/kbukum/plcstream/device"
	"github.com/kbukum/plcstream/errors"
)

// Width is the number of hex characters the legacy rule keeps.
const Width = 15

// Mode selects how a byte group becomes an integer.
type Mode string

const (
	// ModeTruncate15 applies the legacy 15-character hex rule.
	ModeTruncate15 Mode = "truncate15"
	// ModeRegister reads the group as a big-endian unsigned integer.
	ModeRegister Mode = "register"
)

// Record is the decoded form of one item: one value per byte group, in
// register order.
type Record []int64

// String renders the record as "[15, 0, 3]".
func (r Record) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range r {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatInt(v, 10))
	}
	b.WriteByte(']')
	return b.String()
}

// Reading is a decoded record tagged with the poll cycle it came from.
type Reading struct {
	Item    string    `json:"item"`
	Values  Record    `json:"values"`
	Cycle   uint64    `json:"cycle"`
	CycleID string    `json:"cycle_id,omitempty"`
	Time    time.Time `json:"time"`
}

// String prints the values only, matching the console output of the demo.
func (r Reading) String() string { return r.Values.String() }

// Hex applies the legacy rule to a hex string.
func Hex(s string) (int64, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if len(compact) < Width {
		return 0, errors.DecodeFailed(s, fmt.Sprintf("shorter than %d hex characters", Width))
	}
	v, err := strconv.ParseInt(compact[:Width], 16, 32)
	if err != nil {
		return 0, errors.DecodeFailed(s, "not a base-16 32-bit integer").WithCause(err)
	}
	return v, nil
}

// Bytes applies the legacy rule to a raw byte group.
func Bytes(group []byte) (int64, error) {
	return Hex(device.ToHex(group))
}

// Register reads a byte group of up to 8 bytes as a big-endian unsigned
// integer. Groups longer than 7 bytes must fit in an int64.
func Register(group []byte) (int64, error) {
	if len(group) == 0 {
		return 0, errors.DecodeFailed("", "empty byte group")
	}
	if len(group) > 8 {
		return 0, errors.DecodeFailed(device.ToHex(group), "wider than 64 bits")
	}
	var v uint64
	for _, b := range group {
		v = v<<8 | uint64(b)
	}
	if v > 1<<63-1 {
		return 0, errors.DecodeFailed(device.ToHex(group), "overflows int64")
	}
	return int64(v), nil
}

// Decoder decodes byte groups in one Mode.
type Decoder struct {
	mode   Mode
	decode func([]byte) (int64, error)
}

// New returns a decoder for mode. An empty mode is ModeTruncate15.
func New(mode Mode) (*Decoder, error) {
	switch mode {
	case "", ModeTruncate15:
		return &Decoder{mode: ModeTruncate15, decode: Bytes}, nil
	case ModeRegister:
		return &Decoder{mode: ModeRegister, decode: Register}, nil
	default:
		return nil, errors.InvalidInput("mode", fmt.Sprintf("unknown decode mode %q", mode))
	}
}

var legacy = &Decoder{mode: ModeTruncate15, decode: Bytes}

// Mode returns the decoder's mode.
func (d *Decoder) Mode() Mode { return d.mode }

// Group decodes one byte group.
func (d *Decoder) Group(group []byte) (int64, error) {
	return d.decode(group)
}

// Groups decodes every group in order. The first failure aborts the
// record; no partial record is returned.
func (d *Decoder) Groups(groups [][]byte) (Record, error) {
	rec := make(Record, len(groups))
	for i, g := range groups {
		v, err := d.decode(g)
		if err != nil {
			return nil, err
		}
		rec[i] = v
	}
	return rec, nil
}

// Response decodes a register item of resp and checks that the record has
// one value per requested register.
func (d *Decoder) Response(resp *device.ReadResponse, item string) (Record, error) {
	groups, err := resp.ByteGroups(item)
	if err != nil {
		return nil, err
	}
	rec, err := d.Groups(groups)
	if err != nil {
		return nil, err
	}
	if resp.Request != nil {
		if it, ok := resp.Request.Item(item); ok && len(rec) != int(it.Address.Count) {
			return nil, errors.CountMismatch(item, int(it.Address.Count), len(rec))
		}
	}
	return rec, nil
}

// Mapper returns a pipeline map function decoding item from each response.
func (d *Decoder) Mapper(item string) func(context.Context, *device.ReadResponse) (Record, error) {
	return func(_ context.Context, resp *device.ReadResponse) (Record, error) {
		return d.Response(resp, item)
	}
}

// Groups decodes groups with the legacy rule.
func Groups(groups [][]byte) (Record, error) { return legacy.Groups(groups) }

// Response decodes item of resp with the legacy rule.
func Response(resp *device.ReadResponse, item string) (Record, error) {
	return legacy.Response(resp, item)
}

// Mapper returns a legacy-rule map function for item.
func Mapper(item string) func(context.Context, *device.ReadResponse) (Record, error) {
	return legacy.Mapper(item)
}
