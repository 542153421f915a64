// Package fft implements the radix-2 Cooley-Tukey transform and the
// autocorrelation/cross-correlation helpers built on top of it, kept
// dependency-free and deterministic on purpose: this is the one piece of
// the pipeline where pulling in a general-purpose numerics library would
// trade a predictable, auditable kernel for an opaque one.
package fft

import "math"

// RealSize returns the largest power of two that is <= size. Transform
// requires its input length to already be a power of two; callers pad or
// truncate to RealSize(n) before calling it.
func RealSize(size int) int {
	m := 0
	for size > 1 {
		size /= 2
		m++
	}
	return 1 << m
}

// RealToComplex copies a real sequence into a complex64 buffer with a
// zeroed imaginary part. dst must have length len(src).
func RealToComplex(dst []complex64, src []float32) {
	for i, v := range src {
		dst[i] = complex(v, 0)
	}
}

// ComplexToAbs replaces each element with its magnitude, zeroing the
// imaginary part, so the buffer can be fed straight back through Transform.
func ComplexToAbs(buf []complex64) {
	for i, c := range buf {
		mag := float32(math.Sqrt(float64(real(c))*float64(real(c)) + float64(imag(c))*float64(imag(c))))
		buf[i] = complex(mag, 0)
	}
}

// Magnitudes writes the magnitude of each element of buf into out, which
// must have the same length.
func Magnitudes(out []float32, buf []complex64) {
	for i, c := range buf {
		out[i] = float32(math.Sqrt(float64(real(c))*float64(real(c)) + float64(imag(c))*float64(imag(c))))
	}
}

// Autocorrelation computes the autocorrelation of a real sequence via
// FFT -> magnitude -> inverse FFT, writing into answer (which must have
// length RealSize(len(real))). real is read-only; its own length need not
// be a power of two, only answer's.
func Autocorrelation(answer []complex64, real []float32) {
	RealToComplex(answer, real[:len(answer)])
	Transform(answer, false)
	ComplexToAbs(answer)
	Transform(answer, true)
}

// CrossCorrelation computes the cross-correlation of two equal-length
// complex sequences in place, overwriting a with the result. Both slices
// must already be sized to a power of two (Transform's requirement).
func CrossCorrelation(a, b []complex64) {
	Transform(a, false)
	Transform(b, false)
	for i := range a {
		ar, ai := real(a[i]), imag(a[i])
		br, bi := real(b[i]), imag(b[i])
		a[i] = complex(ar*br+ai*bi, ar*bi-ai*br)
	}
	Transform(a, true)
}

// Transform performs an in-place FFT (inverse=false) or inverse FFT
// (inverse=true) on buf, whose length must be a power of two. The forward
// transform is scaled by 1/len(buf); the inverse is not (matching the
// original kernel this is ported from, where the scaling lives on the
// forward leg so autocorrelation/cross-correlation need no extra
// normalization step).
func Transform(buf []complex64, inverse bool) {
	nn := len(buf)
	if nn <= 1 {
		return
	}

	// Bit-reversal permutation.
	j := 0
	for i := 0; i < nn-1; i++ {
		if i < j {
			buf[i], buf[j] = buf[j], buf[i]
		}
		k := nn >> 1
		for k <= j {
			j -= k
			k >>= 1
		}
		j += k
	}

	m := 0
	for size := nn; size > 1; size /= 2 {
		m++
	}

	c1, c2 := -1.0, 0.0
	l2 := 1
	for l := 0; l < m; l++ {
		l1 := l2
		l2 <<= 1
		u1, u2 := 1.0, 0.0
		for j := 0; j < l1; j++ {
			for i := j; i < nn; i += l2 {
				i1 := i + l1
				t1 := u1*float64(real(buf[i1])) - u2*float64(imag(buf[i1]))
				t2 := u1*float64(imag(buf[i1])) + u2*float64(real(buf[i1]))
				buf[i1] = complex(float32(float64(real(buf[i]))-t1), float32(float64(imag(buf[i]))-t2))
				buf[i] = complex(float32(float64(real(buf[i]))+t1), float32(float64(imag(buf[i]))+t2))
			}
			z := u1*c1 - u2*c2
			u2 = u1*c2 + u2*c1
			u1 = z
		}
		c2 = math.Sqrt((1.0 - c1) / 2.0)
		if !inverse {
			c2 = -c2
		}
		c1 = math.Sqrt((1.0 + c1) / 2.0)
	}

	if !inverse {
		scale := float32(nn)
		for i := range buf {
			buf[i] = complex(real(buf[i])/scale, imag(buf[i])/scale)
		}
	}
}
