package bits

// MaxCrumbs is the number of 2-bit groups in a Morton code
const MaxCrumbs = 32

// Interleave spreads x over the even bits and y over the odd bits of a
// Morton code, so each 2-bit group (crumb) holds one quadkey digit.
func Interleave(x, y uint32) uint64 {
	return spread(x) | spread(y)<<1
}

// Deinterleave is the inverse of Interleave
func Deinterleave(code uint64) (x, y uint32) {
	return compact(code), compact(code >> 1)
}

// GetCrumb returns the 2-bit value at crumb index i (0 is least significant)
func GetCrumb(code uint64, i int) uint8 {
	if i < 0 || i >= MaxCrumbs {
		return 0 // Out of range
	}
	return uint8(code>>(2*i)) & 0x3
}

// SetCrumb sets the 2-bit value at crumb index i in code.
// Returns the previous value at that index.
func SetCrumb(code *uint64, i int, v uint8) uint8 {
	if i < 0 || i >= MaxCrumbs {
		return 0 // Out of range
	}

	shift := 2 * i
	prev := uint8(*code>>shift) & 0x3
	*code = (*code &^ (0x3 << shift)) | uint64(v&0x3)<<shift
	return prev
}

func spread(v uint32) uint64 {
	x := uint64(v)
	x = (x | x<<16) & 0x0000FFFF0000FFFF
	x = (x | x<<8) & 0x00FF00FF00FF00FF
	x = (x | x<<4) & 0x0F0F0F0F0F0F0F0F
	x = (x | x<<2) & 0x3333333333333333
	x = (x | x<<1) & 0x5555555555555555
	return x
}

func compact(code uint64) uint32 {
	x := code & 0x5555555555555555
	x = (x | x>>1) & 0x3333333333333333
	x = (x | x>>2) & 0x0F0F0F0F0F0F0F0F
	x = (x | x>>4) & 0x00FF00FF00FF00FF
	x = (x | x>>8) & 0x0000FFFF0000FFFF
	x = (x | x>>16) & 0x00000000FFFFFFFF
	return uint32(x)
}
