package lib

import "math/bits"

// Bit32 alias for uint32, provides bit twiddling methods on 32-bit number.
type Bit32 uint32

// Ones return the number of set bits.
func (b Bit32) Ones() int8 {
	b = b - ((b >> 1) & 0x55555555)
	b = (b & 0x33333333) + ((b >> 2) & 0x33333333)
	return int8((((b + (b >> 4)) & 0x0F0F0F0F) * 0x01010101) >> 24)
}

// Zeros return the number of cleared bits.
func (b Bit32) Zeros() int8 {
	return 32 - b.Ones()
}

// Isset return whether bit `n` is set.
func (b Bit32) Isset(n uint8) bool {
	return (b & (1 << n)) != 0
}

// Setbit return `b` with bit `n` set.
func (b Bit32) Setbit(n uint8) uint32 {
	return uint32(b | (1 << n))
}

// Clearbit return `b` with bit `n` cleared.
func (b Bit32) Clearbit(n uint8) uint32 {
	return uint32(b &^ (1 << n))
}

// Findfirstset return the position of the least significant set bit,
// -1 if none is set.
func (b Bit32) Findfirstset() int8 {
	if b == 0 {
		return -1
	}
	return int8(bits.TrailingZeros32(uint32(b)))
}
