package hevc

// Coefficient scan geometry. Scans are generated once at init: for each
// scan type, coefficients are visited coding group by coding group, with
// the same pattern applied at CG granularity and inside each 4x4 CG.

// TUEntropyCodingParameters describes how one transform block is scanned
// and which significance-map context set it starts in.
type TUEntropyCodingParameters struct {
	// Scan maps coded scan position to raster block position.
	Scan []uint16
	// ScanCG maps CG scan position to raster CG position.
	ScanCG []uint16
	// ScanType is ScanDiag, ScanHor or ScanVer.
	ScanType int
	// Log2TrSizeCG is log2TrSize - 2.
	Log2TrSizeCG uint32
	// FirstSignificanceMapContext offsets the significance contexts by
	// block size and scan type.
	FirstSignificanceMapContext uint32
}

// scanOrder[scanType][sizeIdx] and scanOrderCG[scanType][sizeIdx] are the
// generated scan tables for transform sizes 4..32.
var (
	scanOrder   [3][4][]uint16
	scanOrderCG [3][4][]uint16
)

// genScan lists the raster positions of an n x n grid in the given scan
// order. The diagonal scan walks each anti-diagonal from bottom-left to
// top-right, starting at DC.
func genScan(n, scanType int) []uint16 {
	out := make([]uint16, 0, n*n)
	switch scanType {
	case ScanHor:
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				out = append(out, uint16(y*n+x))
			}
		}
	case ScanVer:
		for x := 0; x < n; x++ {
			for y := 0; y < n; y++ {
				out = append(out, uint16(y*n+x))
			}
		}
	default:
		for d := 0; d <= 2*(n-1); d++ {
			y := d
			if y > n-1 {
				y = n - 1
			}
			for ; y >= 0 && d-y < n; y-- {
				out = append(out, uint16(y*n+(d-y)))
			}
		}
	}
	return out
}

func init() {
	for scanType := 0; scanType < 3; scanType++ {
		for sizeIdx := 0; sizeIdx < 4; sizeIdx++ {
			trSize := 4 << uint(sizeIdx)
			numCG := trSize >> 2

			cgScan := genScan(numCG, scanType)
			inScan := genScan(4, scanType)

			scan := make([]uint16, 0, trSize*trSize)
			for _, cgPos := range cgScan {
				cgY := int(cgPos) / numCG
				cgX := int(cgPos) % numCG
				for _, inPos := range inScan {
					y := cgY*4 + int(inPos)/4
					x := cgX*4 + int(inPos)%4
					scan = append(scan, uint16(y*trSize+x))
				}
			}

			scanOrder[scanType][sizeIdx] = scan
			scanOrderCG[scanType][sizeIdx] = cgScan
		}
	}
}

// coefScanIdx selects the scan for a block. Intra 4x4/8x8 luma (and intra
// 4x4 chroma) blocks follow the prediction direction: near-horizontal modes
// scan vertically and near-vertical modes horizontally; everything else is
// diagonal.
func coefScanIdx(cu CodingUnit, absPartIdx, log2TrSize uint32, isLuma bool) int {
	if !cu.IsIntra(absPartIdx) {
		return ScanDiag
	}
	if isLuma {
		if log2TrSize > 3 {
			return ScanDiag
		}
	} else if log2TrSize > 2 {
		return ScanDiag
	}
	dirMode := int(cu.IntraDir(isLuma, absPartIdx))

	const (
		horIdx = 10
		verIdx = 26
	)
	if abs32(dirMode-verIdx) <= 4 {
		return ScanHor
	}
	if abs32(dirMode-horIdx) <= 4 {
		return ScanVer
	}
	return ScanDiag
}

func abs32(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// GetTUEntropyCodingParameters fills the scan and context-selection
// parameters for one transform block.
func GetTUEntropyCodingParameters(cu CodingUnit, absPartIdx, log2TrSize uint32, isLuma bool) TUEntropyCodingParameters {
	var cp TUEntropyCodingParameters
	cp.Log2TrSizeCG = log2TrSize - 2

	scanIdx := coefScanIdx(cu, absPartIdx, log2TrSize, isLuma)
	sizeIdx := log2TrSize - 2
	cp.Scan = scanOrder[scanIdx][sizeIdx]
	cp.ScanCG = scanOrderCG[scanIdx][sizeIdx]
	cp.ScanType = scanIdx

	if isLuma {
		switch log2TrSize {
		case 2:
			cp.FirstSignificanceMapContext = 0
		case 3:
			if scanIdx != ScanDiag {
				cp.FirstSignificanceMapContext = 15
			} else {
				cp.FirstSignificanceMapContext = 9
			}
		default:
			cp.FirstSignificanceMapContext = 21
		}
	} else {
		switch log2TrSize {
		case 2:
			cp.FirstSignificanceMapContext = 0
		case 3:
			cp.FirstSignificanceMapContext = 9
		default:
			cp.FirstSignificanceMapContext = 12
		}
	}
	return cp
}
