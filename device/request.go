package device

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/kbukum/plcstream/errors"
)

// Item is one named slot of a ReadRequest.
type Item struct {
	Name    string
	Address Address
}

// ReadRequest is an ordered set of named items read together. Build it
// with RequestBuilder; it cannot be changed afterwards.
type ReadRequest struct {
	items []Item
	index map[string]int
}

// Items returns a copy of the request's items in the order they were added.
func (r *ReadRequest) Items() []Item {
	out := make([]Item, len(r.items))
	copy(out, r.items)
	return out
}

// Item looks up a named item.
func (r *ReadRequest) Item(name string) (Item, bool) {
	i, ok := r.index[name]
	if !ok {
		return Item{}, false
	}
	return r.items[i], true
}

// Len returns the number of items.
func (r *ReadRequest) Len() int { return len(r.items) }

// RequestBuilder accumulates items for a ReadRequest. The first error
// sticks and is returned by Build.
type RequestBuilder struct {
	items []Item
	seen  map[string]bool
	err   error
}

// NewRequestBuilder returns an empty builder.
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{seen: make(map[string]bool)}
}

// AddItem adds a named item with address spec, e.g.
// AddItem("test1", "readholdingregisters:0[3]").
func (b *RequestBuilder) AddItem(name, spec string) *RequestBuilder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = errors.InvalidInput("name", "item name must not be empty")
		return b
	}
	if b.seen[name] {
		b.err = errors.InvalidInput("name", fmt.Sprintf("duplicate item %q", name))
		return b
	}
	addr, err := ParseAddress(spec)
	if err != nil {
		b.err = err
		return b
	}
	b.seen[name] = true
	b.items = append(b.items, Item{Name: name, Address: addr})
	return b
}

// Build returns the immutable request.
func (b *RequestBuilder) Build() (*ReadRequest, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.items) == 0 {
		return nil, errors.InvalidInput("items", "request has no items")
	}
	req := &ReadRequest{
		items: make([]Item, len(b.items)),
		index: make(map[string]int, len(b.items)),
	}
	copy(req.items, b.items)
	for i, it := range req.items {
		req.index[it.Name] = i
	}
	return req, nil
}

// ReadResponse holds the raw result of a ReadRequest: one byte group per
// register for register items, one bool per bit for coil and discrete items.
type ReadResponse struct {
	Request *ReadRequest
	Time    time.Time

	groups map[string][][]byte
	bools  map[string][]bool
}

// NewReadResponse returns an empty response for req, stamped now.
func NewReadResponse(req *ReadRequest) *ReadResponse {
	return &ReadResponse{
		Request: req,
		Time:    time.Now(),
		groups:  make(map[string][][]byte),
		bools:   make(map[string][]bool),
	}
}

// PutRegisters stores 16-bit register values as big-endian 2-byte groups.
func (r *ReadResponse) PutRegisters(name string, regs []uint16) {
	groups := make([][]byte, len(regs))
	for i, v := range regs {
		g := make([]byte, 2)
		binary.BigEndian.PutUint16(g, v)
		groups[i] = g
	}
	r.groups[name] = groups
}

// PutByteGroups stores raw byte groups as read.
func (r *ReadResponse) PutByteGroups(name string, groups [][]byte) {
	r.groups[name] = groups
}

// PutBools stores bit values.
func (r *ReadResponse) PutBools(name string, values []bool) {
	r.bools[name] = values
}

// ByteGroups returns the raw byte groups of a register item, in register order.
func (r *ReadResponse) ByteGroups(name string) ([][]byte, error) {
	g, ok := r.groups[name]
	if !ok {
		return nil, errors.NotFound("register item", name)
	}
	return g, nil
}

// Bools returns the bit values of a coil or discrete item.
func (r *ReadResponse) Bools(name string) ([]bool, error) {
	b, ok := r.bools[name]
	if !ok {
		return nil, errors.NotFound("bit item", name)
	}
	return b, nil
}

// ToHex renders bytes as space-separated upper-case hex pairs ("00 0F").
func ToHex(b []byte) string {
	return fmt.Sprintf("% X", b)
}
