package hevc

import (
	"math/rand"
	"testing"

	"github.com/deepteams/hevc/internal/dsp"
)

func newRdoqQuant(t *testing.T, psyScale, lambda2 float64) *Quant {
	t.Helper()
	q, err := NewQuant(true, psyScale, NewFlatScalingList())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(q.Close)
	q.SetEstBits(NewUniformEstBits())
	q.SetLambda(lambda2, lambda2)
	return q
}

func TestRdoqAllZeroPrepass(t *testing.T) {
	q := newRdoqQuant(t, 0, 1)
	cu := interCU(22)
	q.SetQPForBlock(cu, 0)

	dst := make([]int16, 64)
	numSig := q.rdoQuant(cu, dst, 3, ChannelY, 0)
	if numSig != 0 {
		t.Fatalf("numSig = %d, want 0", numSig)
	}
}

func TestRdoqKeepsDominantDC(t *testing.T) {
	q := newRdoqQuant(t, 0, 1e-3)
	cu := interCU(22)
	q.SetQPForBlock(cu, 0)

	q.resiDctCoeff[0] = 16384
	dst := make([]int16, 64)
	numSig := q.rdoQuant(cu, dst, 3, ChannelY, 0)
	if numSig != 1 {
		t.Fatalf("numSig = %d, want 1", numSig)
	}
	if dst[0] <= 0 {
		t.Fatalf("dst[0] = %d, want positive level", dst[0])
	}
	if got := dsp.CountNonZero(dst, 64); got != numSig {
		t.Fatalf("count = %d, numSig = %d", got, numSig)
	}
}

func TestRdoqZeroesIsolatedCoefficient(t *testing.T) {
	// One low-magnitude mid-frequency coefficient in a 16x16 block: with a
	// large lambda the rate of signaling it exceeds its distortion saving
	// and the whole block collapses to zero.
	q := newRdoqQuant(t, 0, 1e9)
	cu := interCU(22)
	q.SetQPForBlock(cu, 0)

	q.resiDctCoeff[8*16+8] = 900
	dst := make([]int16, 256)
	numSig := q.rdoQuant(cu, dst, 4, ChannelY, 0)
	if numSig != 0 {
		t.Fatalf("numSig = %d, want 0", numSig)
	}
	for i, c := range dst {
		if c != 0 {
			t.Fatalf("dst[%d] = %d, want 0", i, c)
		}
	}
}

func TestRdoqTruncatesCheapTail(t *testing.T) {
	// A strong DC and a barely-significant tail coefficient: re-selecting
	// the last position drops the tail once its rate outweighs the
	// distortion it saves.
	q := newRdoqQuant(t, 0, 1e6)
	cu := interCU(22)
	q.SetQPForBlock(cu, 0)

	cp := GetTUEntropyCodingParameters(cu, 0, 3, true)
	q.resiDctCoeff[0] = 16384
	tailBlk := cp.Scan[23]
	q.resiDctCoeff[tailBlk] = 2500

	dst := make([]int16, 64)
	numSig := q.rdoQuant(cu, dst, 3, ChannelY, 0)
	if dst[tailBlk] != 0 {
		t.Fatalf("tail coefficient kept: %d", dst[tailBlk])
	}
	if want := dsp.CountNonZero(dst, 64); numSig != want {
		t.Fatalf("numSig = %d, count = %d", numSig, want)
	}
}

func TestRdoqSignsAndTailZeros(t *testing.T) {
	q := newRdoqQuant(t, 0, 1.0)
	cu := interCU(22)
	q.SetQPForBlock(cu, 0)

	rng := rand.New(rand.NewSource(21))
	for i := 0; i < 64; i++ {
		q.resiDctCoeff[i] = int32(rng.Intn(8001) - 4000)
	}
	dst := make([]int16, 64)
	numSig := q.rdoQuant(cu, dst, 3, ChannelY, 0)

	if want := dsp.CountNonZero(dst, 64); numSig != want {
		t.Fatalf("numSig = %d, count = %d", numSig, want)
	}
	for i, c := range dst {
		if c == 0 {
			continue
		}
		if d := q.resiDctCoeff[i]; (c > 0) != (d > 0) {
			t.Fatalf("pos %d: level %d disagrees with coefficient %d", i, c, d)
		}
	}

	// every position after the last nonzero in scan order is zero
	cp := GetTUEntropyCodingParameters(cu, 0, 3, true)
	last := -1
	for n := 63; n >= 0; n-- {
		if dst[cp.Scan[n]] != 0 {
			last = n
			break
		}
	}
	for n := last + 1; n < 64; n++ {
		if dst[cp.Scan[n]] != 0 {
			t.Fatalf("scan position %d nonzero beyond last %d", n, last)
		}
	}
}

func TestRdoqDeterministic(t *testing.T) {
	runOnce := func() []int16 {
		q, err := NewQuant(true, 0, NewFlatScalingList())
		if err != nil {
			t.Fatal(err)
		}
		defer q.Close()
		q.SetEstBits(NewUniformEstBits())
		q.SetLambda(2.5, 2.5)
		cu := interCU(27)
		q.SetQPForBlock(cu, 0)

		rng := rand.New(rand.NewSource(5))
		for i := 0; i < 256; i++ {
			q.resiDctCoeff[i] = int32(rng.Intn(6001) - 3000)
		}
		dst := make([]int16, 256)
		q.rdoQuant(cu, dst, 4, ChannelY, 0)
		return dst
	}

	a := runOnce()
	b := runOnce()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("pos %d: run1 %d, run2 %d", i, a[i], b[i])
		}
	}
}

func TestRdoqSignHidingParity(t *testing.T) {
	q := newRdoqQuant(t, 0, 1.0)
	cu := interCU(22)
	cu.SignHide = true
	q.SetQPForBlock(cu, 0)

	rng := rand.New(rand.NewSource(31))
	for i := 0; i < 64; i++ {
		q.resiDctCoeff[i] = int32(rng.Intn(12001) - 6000)
	}
	dst := make([]int16, 64)
	numSig := q.rdoQuant(cu, dst, 3, ChannelY, 0)
	if want := dsp.CountNonZero(dst, 64); numSig != want {
		t.Fatalf("numSig = %d, count = %d", numSig, want)
	}

	cp := GetTUEntropyCodingParameters(cu, 0, 3, true)
	for subSet := 3; subSet >= 0; subSet-- {
		subPos := subSet << Log2ScanSetSize
		first, last := -1, -1
		absSum := 0
		for n := 0; n < ScanSetSize; n++ {
			v := int(dst[cp.Scan[n+subPos]])
			if v != 0 {
				if first < 0 {
					first = n
				}
				last = n
				if v < 0 {
					absSum -= v
				} else {
					absSum += v
				}
			}
		}
		if first < 0 || last-first < SBHThreshold {
			continue
		}
		signbit := 0
		if dst[cp.Scan[subPos+first]] < 0 {
			signbit = 1
		}
		if absSum&1 != signbit {
			t.Fatalf("CG %d: parity %d, signbit %d", subSet, absSum&1, signbit)
		}
	}
}

func TestRdoqPsyDisabledOnChroma(t *testing.T) {
	// With the psy scale set but a chroma channel, the bias must not fire:
	// output matches a psy-disabled run bit for bit.
	fill := func(q *Quant) {
		rng := rand.New(rand.NewSource(17))
		for i := 0; i < 16; i++ {
			q.resiDctCoeff[i] = int32(rng.Intn(4001) - 2000)
		}
	}

	qPsy := newRdoqQuant(t, 2.0, 1.0)
	cu := interCU(22)
	q2 := newRdoqQuant(t, 0, 1.0)
	qPsy.SetQPForBlock(cu, 0)
	q2.SetQPForBlock(cu, 0)

	fill(qPsy)
	fill(q2)

	dstPsy := make([]int16, 16)
	dstOff := make([]int16, 16)
	qPsy.rdoQuant(cu, dstPsy, 2, ChannelU, 0)
	q2.rdoQuant(cu, dstOff, 2, ChannelU, 0)

	for i := range dstPsy {
		if dstPsy[i] != dstOff[i] {
			t.Fatalf("pos %d: psy %d, off %d", i, dstPsy[i], dstOff[i])
		}
	}
}

func TestRdoqPsyLumaRuns(t *testing.T) {
	// Luma with psy enabled exercises the reconstruction-bias path; the
	// result must still satisfy the structural invariants.
	q := newRdoqQuant(t, 2.0, 1.0)
	cu := interCU(22)
	q.SetQPForBlock(cu, 0)

	rng := rand.New(rand.NewSource(13))
	for i := 0; i < 64; i++ {
		q.resiDctCoeff[i] = int32(rng.Intn(8001) - 4000)
		q.fencDctCoeff[i] = q.resiDctCoeff[i] + int32(rng.Intn(401)-200)
	}
	dst := make([]int16, 64)
	numSig := q.rdoQuant(cu, dst, 3, ChannelY, 0)
	if want := dsp.CountNonZero(dst, 64); numSig != want {
		t.Fatalf("numSig = %d, count = %d", numSig, want)
	}
	for i, c := range dst {
		if c == 0 {
			continue
		}
		if d := q.resiDctCoeff[i]; (c > 0) != (d > 0) {
			t.Fatalf("pos %d: level %d disagrees with coefficient %d", i, c, d)
		}
	}
}

func TestRdoqThroughTransformDriver(t *testing.T) {
	q := newRdoqQuant(t, 0, 1.0)
	cu := interCU(22)
	q.SetQPForBlock(cu, 0)

	residual := make([]int16, 64)
	rng := rand.New(rand.NewSource(3))
	for i := range residual {
		residual[i] = int16(rng.Intn(201) - 100)
	}
	coeff := make([]int16, 64)
	numSig := q.TransformNxN(cu, nil, 0, residual, 8, coeff, 3, ChannelY, 0, false, true)
	if want := dsp.CountNonZero(coeff, 64); numSig != want {
		t.Fatalf("numSig = %d, count = %d", numSig, want)
	}
}
