package dsp

import (
	"math/rand"
	"testing"
)

// Known rows of the 4- and 8-point core transform matrices.
var wantT4 = [4][4]int{
	{64, 64, 64, 64},
	{83, 36, -36, -83},
	{64, -64, -64, 64},
	{36, -83, 83, -36},
}

var wantT8 = [8][8]int{
	{64, 64, 64, 64, 64, 64, 64, 64},
	{89, 75, 50, 18, -18, -50, -75, -89},
	{83, 36, -36, -83, -83, -36, 36, 83},
	{75, -18, -89, -50, 50, 89, 18, -75},
	{64, -64, -64, 64, 64, -64, -64, 64},
	{50, -89, 18, 75, -75, -18, 89, -50},
	{36, -83, 83, -36, -36, 83, -83, 36},
	{18, -50, 75, -89, 89, -75, 50, -18},
}

func TestTransformMatrices(t *testing.T) {
	for k := 0; k < 4; k++ {
		for n := 0; n < 4; n++ {
			if t4[k][n] != wantT4[k][n] {
				t.Errorf("t4[%d][%d] = %d, want %d", k, n, t4[k][n], wantT4[k][n])
			}
		}
	}
	for k := 0; k < 8; k++ {
		for n := 0; n < 8; n++ {
			if t8[k][n] != wantT8[k][n] {
				t.Errorf("t8[%d][%d] = %d, want %d", k, n, t8[k][n], wantT8[k][n])
			}
		}
	}

	// 16-point odd rows pull from the 16 odd cosine values.
	wantRow1 := [16]int{90, 87, 80, 70, 57, 43, 25, 9, -9, -25, -43, -57, -70, -80, -87, -90}
	for n := 0; n < 16; n++ {
		if t16[1][n] != wantRow1[n] {
			t.Errorf("t16[1][%d] = %d, want %d", n, t16[1][n], wantRow1[n])
		}
	}

	// Even rows of each size embed the half-size matrix.
	for k := 0; k < 16; k++ {
		for n := 0; n < 16; n++ {
			if t32[2*k][n] != t16[k][n] {
				t.Errorf("t32[%d][%d] = %d, want t16[%d][%d] = %d", 2*k, n, t32[2*k][n], k, n, t16[k][n])
			}
		}
	}
}

func TestDctFlatBlock(t *testing.T) {
	// A flat block transforms to a single DC coefficient.
	for _, size := range []int{4, 8, 16, 32} {
		src := make([]int16, size*size)
		for i := range src {
			src[i] = 1
		}
		dst := make([]int32, size*size)
		idx := map[int]int{4: DCT4x4, 8: DCT8x8, 16: DCT16x16, 32: DCT32x32}[size]
		Dct[idx](src, dst, size)

		if dst[0] == 0 {
			t.Errorf("size %d: DC = 0, want nonzero", size)
		}
		for i := 1; i < size*size; i++ {
			if dst[i] != 0 {
				t.Errorf("size %d: AC coefficient %d = %d, want 0", size, i, dst[i])
			}
		}
	}
}

func TestDct8FlatValue(t *testing.T) {
	// Flat 128 through the 8x8 DCT lands exactly on DC = 16384.
	src := make([]int16, 64)
	for i := range src {
		src[i] = 128
	}
	dst := make([]int32, 64)
	Dct[DCT8x8](src, dst, 8)
	if dst[0] != 16384 {
		t.Errorf("DC = %d, want 16384", dst[0])
	}
}

func testRoundTrip(t *testing.T, size, fwd, inv int, maxAbs int, tol int) {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(size)))
	src := make([]int16, size*size)
	for i := range src {
		src[i] = int16(rng.Intn(2*maxAbs+1) - maxAbs)
	}
	coef := make([]int32, size*size)
	rec := make([]int16, size*size)

	Dct[fwd](src, coef, size)
	Idct[inv](coef, rec, size)

	for i := range src {
		diff := int(src[i]) - int(rec[i])
		if diff < 0 {
			diff = -diff
		}
		if diff > tol {
			t.Fatalf("size %d pos %d: src %d rec %d (tol %d)", size, i, src[i], rec[i], tol)
		}
	}
}

func TestDctIdctRoundTrip(t *testing.T) {
	// The 16- and 32-point integer matrices are not exactly orthogonal: even
	// in exact arithmetic their round trip drifts by about 2.7 and 3.4 on
	// full-range input, so those sizes get a wider tolerance.
	testRoundTrip(t, 4, DCT4x4, DCT4x4, 255, 2)
	testRoundTrip(t, 8, DCT8x8, DCT8x8, 255, 2)
	testRoundTrip(t, 16, DCT16x16, DCT16x16, 255, 3)
	testRoundTrip(t, 32, DCT32x32, DCT32x32, 255, 5)
}

func TestDstIdstRoundTrip(t *testing.T) {
	testRoundTrip(t, 4, DST4x4, DST4x4, 255, 2)
}

func TestQuantPrimitive(t *testing.T) {
	// qbits 19, symmetric add: level = (100*16384 + 2^18) >> 19 = 3,
	// deltaU = (1638400 - 3<<19) >> 11 = 32.
	coef := []int32{100, -100, 0, 1}
	quantCoeff := []int32{16384, 16384, 16384, 16384}
	deltaU := make([]int32, 4)
	qCoef := make([]int16, 4)

	numSig := Quant(coef, quantCoeff, deltaU, qCoef, 19, 1<<18, 4)
	if numSig != 2 {
		t.Errorf("numSig = %d, want 2", numSig)
	}
	if qCoef[0] != 3 || qCoef[1] != -3 {
		t.Errorf("qCoef = %v, want [3 -3 0 0]", qCoef)
	}
	if deltaU[0] != 32 {
		t.Errorf("deltaU[0] = %d, want 32", deltaU[0])
	}
	if qCoef[2] != 0 || qCoef[3] != 0 {
		t.Errorf("small coefficients survived: %v", qCoef)
	}
}

func TestNQuantEmitsScaled(t *testing.T) {
	coef := []int32{100, -50}
	quantCoeff := []int32{16384, 16384}
	scaled := make([]int32, 2)
	qCoef := make([]int16, 2)

	NQuant(coef, quantCoeff, scaled, qCoef, 19, 1<<18, 2)
	if scaled[0] != 100*16384 || scaled[1] != 50*16384 {
		t.Errorf("scaled = %v, want [%d %d]", scaled, 100*16384, 50*16384)
	}
}

func TestDequantNormal(t *testing.T) {
	qCoef := []int16{128, -128, 0}
	coef := make([]int32, 3)
	// scale 512, shift 2: 128*512+2 >> 2 = 16384
	DequantNormal(qCoef, coef, 3, 512, 2)
	if coef[0] != 16384 || coef[1] != -16384 || coef[2] != 0 {
		t.Errorf("coef = %v, want [16384 -16384 0]", coef)
	}
}

func TestDequantSaturates(t *testing.T) {
	qCoef := []int16{32767}
	coef := make([]int32, 1)
	DequantNormal(qCoef, coef, 1, 72<<8, 1)
	if coef[0] != 32767 {
		t.Errorf("coef = %d, want saturation at 32767", coef[0])
	}
}

func TestCvtRoundTrip(t *testing.T) {
	src := []int16{1, -2, 3, -4}
	wide := make([]int32, 4)
	back := make([]int16, 4)
	Cvt16to32Shl(wide, src, 2, 5, 2)
	if wide[0] != 32 || wide[1] != -64 {
		t.Errorf("wide = %v", wide)
	}
	Cvt32to16Shr(back, wide, 2, 5, 2)
	for i := range src {
		if back[i] != src[i] {
			t.Errorf("pos %d: got %d, want %d", i, back[i], src[i])
		}
	}
}

func TestBlockFill(t *testing.T) {
	dst := make([]int16, 8*8)
	BlockFill[0](dst, 8, 7) // 4x4 fill into stride-8 block
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if dst[y*8+x] != 7 {
				t.Errorf("dst[%d][%d] = %d, want 7", y, x, dst[y*8+x])
			}
		}
	}
	if dst[4] != 0 || dst[4*8] != 0 {
		t.Error("fill escaped the 4x4 block")
	}
}

func TestCountNonZero(t *testing.T) {
	coef := []int16{0, 1, 0, -3, 0, 0, 7, 0}
	if got := CountNonZero(coef, len(coef)); got != 3 {
		t.Errorf("CountNonZero = %d, want 3", got)
	}
}

func BenchmarkDct16(b *testing.B) {
	src := make([]int16, 256)
	dst := make([]int32, 256)
	for i := range src {
		src[i] = int16(i - 128)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Dct[DCT16x16](src, dst, 16)
	}
}
