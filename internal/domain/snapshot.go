package domain

// Block is the contiguous register range read every poll.
type Block struct {
	Address uint16
	Count   uint16
}

// Values returns how many float values the block decodes into.
func (b Block) Values() int { return int(b.Count) / 2 }

// Snapshot is one poll's worth of raw 16-bit register words in address order.
type Snapshot struct {
	Address uint16
	Words   []uint16
}

// Len returns the number of register words in the snapshot.
func (s Snapshot) Len() int { return len(s.Words) }

// Reading is the decoded float vector of a snapshot. Index i holds the value
// assembled from words 2i and 2i+1.
type Reading []float32

// At returns the value at the 1-based position pos.
func (r Reading) At(pos int) (float32, bool) {
	if pos < 1 || pos > len(r) {
		return 0, false
	}
	return r[pos-1], true
}
