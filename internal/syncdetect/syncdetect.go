// Package syncdetect locates the blanking interval in a reconstructed
// frame/line projection and rotates the frame buffer so that interval lands
// at the edges of the image instead of splitting it across a wraparound.
//
// This has no upstream C source in the retrieval pack: the collaborator
// that implemented the original sync detector was excluded deliberately.
// It is built from the post-processor's calling contract alone (row/column
// projections in, a corrected buffer and a sync offset out).
package syncdetect

// Detector locates and corrects frame/line synchronization.
type Detector interface {
	// Run looks for the darkest (lowest-energy) run in heightProj and
	// widthProj — the video blanking interval appears there as a
	// near-constant floor — and rotates input into corrected so that run
	// starts at offset 0. supersampling relaxes the search to coarser
	// candidate steps (cheaper, lower resolution); syncPass is false when
	// input is the motion-blur accumulator (low-pass applied before sync)
	// and true when input is the unfiltered frame (low-pass applied after
	// sync). It returns the corrected buffer (a slice of the caller's
	// corrected argument) and the offset, in pixels, by which the frame
	// was rotated.
	Run(input, corrected []float32, width, height int, widthProj, heightProj []float32, supersampling, syncPass bool) (result []float32, offset int64)
}

// Default is a single-frame nearest-minimum blanking detector: it finds the
// row and column with the lowest projected energy and treats their
// intersection as the start of the blanking interval.
type Default struct {
	lastRowOffset int
	lastColOffset int
}

// New returns a Detector using the simple minimum-projection heuristic.
func New() *Default {
	return &Default{}
}

func (d *Default) Run(input, corrected []float32, width, height int, widthProj, heightProj []float32, supersampling, syncPass bool) ([]float32, int64) {
	if width <= 0 || height <= 0 || len(input) != width*height {
		copy(corrected[:len(input)], input)
		return corrected[:len(input)], 0
	}

	rowOffset := argmin(heightProj)
	colOffset := argmin(widthProj)

	if supersampling {
		// Coarse candidate search: stick to the previous offset unless
		// the new minimum moved by more than one row/column, trading
		// precision for stability on a lower-resolution pass.
		if abs(rowOffset-d.lastRowOffset) <= 1 {
			rowOffset = d.lastRowOffset
		}
		if abs(colOffset-d.lastColOffset) <= 1 {
			colOffset = d.lastColOffset
		}
	}
	d.lastRowOffset = rowOffset
	d.lastColOffset = colOffset

	offset := int64(rowOffset)*int64(width) + int64(colOffset)
	pixelOffset := int(offset) % len(input)
	if pixelOffset < 0 {
		pixelOffset += len(input)
	}

	out := corrected[:len(input)]
	copy(out, input[pixelOffset:])
	copy(out[len(input)-pixelOffset:], input[:pixelOffset])

	return out, offset
}

func argmin(v []float32) int {
	if len(v) == 0 {
		return 0
	}
	best := 0
	for i, x := range v {
		if x < v[best] {
			best = i
		}
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
