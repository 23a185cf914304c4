// Package cityhash implements the 128-bit CityHash as of version 1.0.2,
// the exact revision ClickHouse froze for compressed frame checksums. Later
// CityHash releases changed the output, so a generic library cannot be used.
package cityhash

import "encoding/binary"

const (
	k0 = 0xc3a5c85c97cb3127
	k1 = 0xb492b66fbe98f273
	k2 = 0x9ae16a3b2f90404f
	k3 = 0xc949d7c7509e6557

	kMul = 0x9ddfea08eb382d69
)

// U128 is a 128-bit hash value.
type U128 struct {
	Low  uint64
	High uint64
}

func fetch64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func fetch32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func rotate(v uint64, shift uint) uint64 {
	if shift == 0 {
		return v
	}
	return (v >> shift) | (v << (64 - shift))
}

func rotateByAtLeast1(v uint64, shift uint) uint64 {
	return (v >> shift) | (v << (64 - shift))
}

func shiftMix(v uint64) uint64 {
	return v ^ (v >> 47)
}

func hash128to64(x U128) uint64 {
	a := (x.Low ^ x.High) * kMul
	a ^= a >> 47
	b := (x.High ^ a) * kMul
	b ^= b >> 47
	b *= kMul
	return b
}

func hashLen16(u, v uint64) uint64 {
	return hash128to64(U128{Low: u, High: v})
}

func hashLen0to16(s []byte) uint64 {
	n := uint64(len(s))
	if n > 8 {
		a := fetch64(s)
		b := fetch64(s[n-8:])
		return hashLen16(a, rotateByAtLeast1(b+n, uint(n))) ^ b
	}
	if n >= 4 {
		a := uint64(fetch32(s))
		return hashLen16(n+(a<<3), uint64(fetch32(s[n-4:])))
	}
	if n > 0 {
		a := uint64(s[0])
		b := uint64(s[n>>1])
		c := uint64(s[n-1])
		y := a + (b << 8)
		z := n + (c << 2)
		return shiftMix(y*k2^z*k3) * k2
	}
	return k2
}

func weakHashLen32WithSeeds(w, x, y, z, a, b uint64) U128 {
	a += w
	b = rotate(b+a+z, 21)
	c := a
	a += x
	a += y
	b += rotate(a, 44)
	return U128{Low: a + z, High: b + c}
}

func weakHashLen32WithSeedsBytes(s []byte, a, b uint64) U128 {
	return weakHashLen32WithSeeds(fetch64(s), fetch64(s[8:]), fetch64(s[16:]), fetch64(s[24:]), a, b)
}

func cityMurmur(s []byte, seed U128) U128 {
	a := seed.Low
	b := seed.High
	var c, d uint64
	l := len(s) - 16
	if l <= 0 {
		a = shiftMix(a*k1) * k1
		c = b*k1 + hashLen0to16(s)
		if len(s) >= 8 {
			d = shiftMix(a + fetch64(s))
		} else {
			d = shiftMix(a + c)
		}
	} else {
		c = hashLen16(fetch64(s[len(s)-8:])+k1, a)
		d = hashLen16(b+uint64(len(s)), c+fetch64(s[len(s)-16:]))
		a += d
		for {
			a ^= shiftMix(fetch64(s)*k1) * k1
			a *= k1
			b ^= a
			c ^= shiftMix(fetch64(s[8:])*k1) * k1
			c *= k1
			d ^= c
			s = s[16:]
			l -= 16
			if l <= 0 {
				break
			}
		}
	}
	a = hashLen16(a, c)
	b = hashLen16(d, b)
	return U128{Low: a ^ b, High: hashLen16(b, a)}
}

// Hash128Seed computes the hash of s mixed with seed.
func Hash128Seed(s []byte, seed U128) U128 {
	if len(s) < 128 {
		return cityMurmur(s, seed)
	}

	full := s
	x := seed.Low
	y := seed.High
	z := uint64(len(s)) * k1
	var v, w U128
	v.Low = rotate(y^k1, 49)*k1 + fetch64(s)
	v.High = rotate(v.Low, 42)*k1 + fetch64(s[8:])
	w.Low = rotate(y+z, 35)*k1 + x
	w.High = rotate(x+fetch64(s[88:]), 53) * k1

	n := len(s)
	for {
		x = rotate(x+y+v.Low+fetch64(s[16:]), 37) * k1
		y = rotate(y+v.High+fetch64(s[48:]), 42) * k1
		x ^= w.High
		y ^= v.Low
		z = rotate(z^w.Low, 33)
		v = weakHashLen32WithSeedsBytes(s, v.High*k1, x+w.Low)
		w = weakHashLen32WithSeedsBytes(s[32:], z+w.High, y)
		z, x = x, z
		s = s[64:]

		x = rotate(x+y+v.Low+fetch64(s[16:]), 37) * k1
		y = rotate(y+v.High+fetch64(s[48:]), 42) * k1
		x ^= w.High
		y ^= v.Low
		z = rotate(z^w.Low, 33)
		v = weakHashLen32WithSeedsBytes(s, v.High*k1, x+w.Low)
		w = weakHashLen32WithSeedsBytes(s[32:], z+w.High, y)
		z, x = x, z
		s = s[64:]

		n -= 128
		if n < 128 {
			break
		}
	}

	y += rotate(w.Low, 37)*k0 + z
	x += rotate(v.Low+z, 49) * k0
	// The tail walks 32-byte chunks backwards from the end of the input and
	// may reach into bytes the main loop already consumed.
	for tailDone := 0; tailDone < n; {
		tailDone += 32
		y = rotate(y-x, 42)*k0 + v.High
		w.Low += fetch64(full[len(full)-tailDone+16:])
		x = rotate(x, 49)*k0 + w.Low
		w.Low += v.Low
		v = weakHashLen32WithSeedsBytes(full[len(full)-tailDone:], v.High, w.Low)
	}
	x = hashLen16(x, v.Low)
	y = hashLen16(y, w.Low)
	return U128{
		Low:  hashLen16(x+v.High, w.Low) + y,
		High: hashLen16(x+w.High, y+v.High),
	}
}

// Hash128 computes the 128-bit CityHash of s.
func Hash128(s []byte) U128 {
	n := len(s)
	switch {
	case n >= 16:
		return Hash128Seed(s[16:], U128{Low: fetch64(s) ^ k3, High: fetch64(s[8:])})
	case n >= 8:
		return Hash128Seed(nil, U128{
			Low:  fetch64(s) ^ (uint64(n) * k1),
			High: fetch64(s[n-8:]) ^ k2,
		})
	default:
		return Hash128Seed(s, U128{Low: k0, High: k1})
	}
}
