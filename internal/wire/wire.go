// Package wire implements the relay's fixed-endian primitive codec and the
// 20-byte tagged Address encoding shared by every signed and unsigned packet.
package wire

import (
	"encoding/binary"
	"fmt"
	"net"
)

// AddressKind tags the form of an Address.
type AddressKind uint8

const (
	AddressNone AddressKind = 0
	AddressIPv4 AddressKind = 1
	AddressIPv6 AddressKind = 2
)

// AddressSize is the fixed wire size of an Address: 1 type byte, 16 address
// bytes (zero-padded for IPv4), 2 little-endian port bytes, 1 trailing pad.
const AddressSize = 1 + 16 + 2 + 1

// Address is a tagged IPv4/IPv6/None address, equal iff Kind, the bytes up
// to Kind's tagged length, and Port all agree.
type Address struct {
	Kind  AddressKind
	Bytes [16]byte
	Port  uint16
}

// Equal reports whether two addresses refer to the same endpoint.
func (a Address) Equal(b Address) bool {
	if a.Kind != b.Kind || a.Port != b.Port {
		return false
	}
	switch a.Kind {
	case AddressIPv4:
		return a.Bytes[0] == b.Bytes[0] && a.Bytes[1] == b.Bytes[1] &&
			a.Bytes[2] == b.Bytes[2] && a.Bytes[3] == b.Bytes[3]
	case AddressIPv6:
		return a.Bytes == b.Bytes
	default:
		return true
	}
}

// AddressFromUDP converts a net.UDPAddr into the wire Address form.
func AddressFromUDP(addr *net.UDPAddr) Address {
	if addr == nil {
		return Address{Kind: AddressNone}
	}
	if ip4 := addr.IP.To4(); ip4 != nil {
		a := Address{Kind: AddressIPv4, Port: uint16(addr.Port)}
		copy(a.Bytes[:4], ip4)
		return a
	}
	if ip16 := addr.IP.To16(); ip16 != nil {
		a := Address{Kind: AddressIPv6, Port: uint16(addr.Port)}
		copy(a.Bytes[:], ip16)
		return a
	}
	return Address{Kind: AddressNone}
}

// UDPAddr converts an Address back to a net.UDPAddr, or nil for AddressNone.
func (a Address) UDPAddr() *net.UDPAddr {
	switch a.Kind {
	case AddressIPv4:
		return &net.UDPAddr{IP: net.IP(a.Bytes[:4]).To4(), Port: int(a.Port)}
	case AddressIPv6:
		ip := make(net.IP, 16)
		copy(ip, a.Bytes[:])
		return &net.UDPAddr{IP: ip, Port: int(a.Port)}
	default:
		return nil
	}
}

func (a Address) String() string {
	u := a.UDPAddr()
	if u == nil {
		return "none"
	}
	return u.String()
}

// WriteAddress writes the 20-byte encoding of addr at buf[*index:] and
// advances *index. On a malformed address (unknown Kind) it writes an
// AddressNone of zeros rather than signalling an error, per the codec's
// "encode never fails" contract.
func WriteAddress(buf []byte, index *int, addr Address) {
	i := *index
	switch addr.Kind {
	case AddressIPv4:
		buf[i] = byte(addr.Kind)
		copy(buf[i+1:i+5], addr.Bytes[:4])
		for j := 5; j < 17; j++ {
			buf[i+j] = 0
		}
		binary.LittleEndian.PutUint16(buf[i+17:i+19], addr.Port)
	case AddressIPv6:
		buf[i] = byte(addr.Kind)
		copy(buf[i+1:i+17], addr.Bytes[:])
		binary.LittleEndian.PutUint16(buf[i+17:i+19], addr.Port)
	default:
		buf[i] = byte(AddressNone)
		for j := 1; j < 19; j++ {
			buf[i+j] = 0
		}
	}
	buf[i+19] = 0
	*index = i + AddressSize
}

// ReadAddress reads a 20-byte Address from buf[*index:] and advances *index.
func ReadAddress(buf []byte, index *int) (Address, error) {
	i := *index
	if i+AddressSize > len(buf) {
		return Address{}, fmt.Errorf("wire: address read out of bounds")
	}
	var a Address
	a.Kind = AddressKind(buf[i])
	copy(a.Bytes[:], buf[i+1:i+17])
	a.Port = binary.LittleEndian.Uint16(buf[i+17 : i+19])
	*index = i + AddressSize
	if a.Kind != AddressIPv4 && a.Kind != AddressIPv6 {
		a.Kind = AddressNone
	}
	return a, nil
}

// WriteUint8 writes a single byte and advances *index.
func WriteUint8(buf []byte, index *int, v uint8) {
	buf[*index] = v
	*index++
}

// ReadUint8 reads a single byte and advances *index.
func ReadUint8(buf []byte, index *int) (uint8, error) {
	if *index+1 > len(buf) {
		return 0, fmt.Errorf("wire: uint8 read out of bounds")
	}
	v := buf[*index]
	*index++
	return v, nil
}

// WriteUint16 writes a little-endian uint16 and advances *index.
func WriteUint16(buf []byte, index *int, v uint16) {
	binary.LittleEndian.PutUint16(buf[*index:*index+2], v)
	*index += 2
}

// ReadUint16 reads a little-endian uint16 and advances *index.
func ReadUint16(buf []byte, index *int) (uint16, error) {
	if *index+2 > len(buf) {
		return 0, fmt.Errorf("wire: uint16 read out of bounds")
	}
	v := binary.LittleEndian.Uint16(buf[*index : *index+2])
	*index += 2
	return v, nil
}

// WriteUint32 writes a little-endian uint32 and advances *index.
func WriteUint32(buf []byte, index *int, v uint32) {
	binary.LittleEndian.PutUint32(buf[*index:*index+4], v)
	*index += 4
}

// ReadUint32 reads a little-endian uint32 and advances *index.
func ReadUint32(buf []byte, index *int) (uint32, error) {
	if *index+4 > len(buf) {
		return 0, fmt.Errorf("wire: uint32 read out of bounds")
	}
	v := binary.LittleEndian.Uint32(buf[*index : *index+4])
	*index += 4
	return v, nil
}

// WriteUint64 writes a little-endian uint64 and advances *index.
func WriteUint64(buf []byte, index *int, v uint64) {
	binary.LittleEndian.PutUint64(buf[*index:*index+8], v)
	*index += 8
}

// ReadUint64 reads a little-endian uint64 and advances *index.
func ReadUint64(buf []byte, index *int) (uint64, error) {
	if *index+8 > len(buf) {
		return 0, fmt.Errorf("wire: uint64 read out of bounds")
	}
	v := binary.LittleEndian.Uint64(buf[*index : *index+8])
	*index += 8
	return v, nil
}

// WriteBytes copies src into buf at *index and advances *index by len(src).
func WriteBytes(buf []byte, index *int, src []byte) {
	copy(buf[*index:*index+len(src)], src)
	*index += len(src)
}

// ReadBytes copies n bytes from buf[*index:] into a freshly allocated slice
// and advances *index.
func ReadBytes(buf []byte, index *int, n int) ([]byte, error) {
	if *index+n > len(buf) {
		return nil, fmt.Errorf("wire: bytes read out of bounds")
	}
	out := make([]byte, n)
	copy(out, buf[*index:*index+n])
	*index += n
	return out, nil
}
