package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kbukum/plcstream/errors"
)

// RegisterClass selects one of the four Modbus data tables.
type RegisterClass int

const (
	Coil RegisterClass = iota + 1
	DiscreteInput
	HoldingRegister
	InputRegister
)

var classNames = map[string]RegisterClass{
	"coil":                 Coil,
	"coils":                Coil,
	"readcoils":            Coil,
	"discrete":             DiscreteInput,
	"discreteinput":        DiscreteInput,
	"readdiscreteinputs":   DiscreteInput,
	"holding":              HoldingRegister,
	"holdingregister":      HoldingRegister,
	"readholdingregisters": HoldingRegister,
	"input":                InputRegister,
	"inputregister":        InputRegister,
	"readinputregisters":   InputRegister,
}

// String returns the canonical short name.
func (c RegisterClass) String() string {
	switch c {
	case Coil:
		return "coil"
	case DiscreteInput:
		return "discrete"
	case HoldingRegister:
		return "holding"
	case InputRegister:
		return "input"
	default:
		return "unknown"
	}
}

// IsBit reports whether the class holds single-bit values.
func (c RegisterClass) IsBit() bool {
	return c == Coil || c == DiscreteInput
}

// MaxCount is the largest quantity one Modbus request may ask for.
func (c RegisterClass) MaxCount() int {
	if c.IsBit() {
		return 2000
	}
	return 125
}

// Address is a parsed address spec. It is a value type and never changes
// after parsing.
type Address struct {
	Class RegisterClass
	Start uint16
	Count uint16
}

// ParseAddress parses "<class>:<start>[<count>]". The count suffix is
// optional and defaults to 1.
func ParseAddress(spec string) (Address, error) {
	s := strings.TrimSpace(spec)
	className, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Address{}, errors.InvalidAddress(spec, "expected <class>:<start>[<count>]")
	}
	class, ok := classNames[strings.ToLower(className)]
	if !ok {
		return Address{}, errors.InvalidAddress(spec, fmt.Sprintf("unknown register class %q", className))
	}

	startStr, countStr := rest, "1"
	if i := strings.IndexByte(rest, '['); i >= 0 {
		if !strings.HasSuffix(rest, "]") {
			return Address{}, errors.InvalidAddress(spec, "unterminated count")
		}
		startStr, countStr = rest[:i], rest[i+1:len(rest)-1]
	}

	start, err := strconv.ParseUint(startStr, 10, 16)
	if err != nil {
		return Address{}, errors.InvalidAddress(spec, fmt.Sprintf("invalid start %q", startStr))
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 1 {
		return Address{}, errors.InvalidAddress(spec, fmt.Sprintf("invalid count %q", countStr))
	}
	if count > class.MaxCount() {
		return Address{}, errors.InvalidAddress(spec, fmt.Sprintf("count %d exceeds %d", count, class.MaxCount()))
	}
	if int(start)+count > 65536 {
		return Address{}, errors.InvalidAddress(spec, "range runs past address 65535")
	}

	return Address{Class: class, Start: uint16(start), Count: uint16(count)}, nil
}

// String renders the address in canonical spec form, e.g. "holding:0[3]".
func (a Address) String() string {
	return fmt.Sprintf("%s:%d[%d]", a.Class, a.Start, a.Count)
}
