package afpacket

import (
	"fmt"
)

const (
	tpacketAlignment = 16 // TPACKET_ALIGNMENT for AF_PACKET
	tpacketHdrLen    = 52 // TPACKET3_HDRLEN (approximate)
	maxBlockSize     = 4 * 1024 * 1024
)

// ringSize derives the TPACKET_V3 ring geometry from a memory budget.
//
// The kernel requires frameSize to be a multiple of TPACKET_ALIGNMENT and
// blockSize a multiple of both pageSize and frameSize. blockSize*numBlocks
// is kept close to ringBufferSizeMB.
func ringSize(ringBufferSizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if ringBufferSizeMB <= 0 {
		return 0, 0, 0, fmt.Errorf("ringBufferSizeMB must be positive, got %d", ringBufferSizeMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snapLen must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("pageSize must be positive and multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	targetBytes := ringBufferSizeMB * 1024 * 1024

	frameSize = align(tpacketHdrLen+snapLen, tpacketAlignment)
	if frameSize <= pageSize {
		// Grow to a divisor of the page; pageSize itself always qualifies.
		for pageSize%frameSize != 0 {
			frameSize += tpacketAlignment
		}
	} else {
		frameSize = align(frameSize, pageSize)
	}

	blockSize = lcm(pageSize, frameSize)
	if fit := maxBlockSize / blockSize; fit > 1 {
		blockSize *= fit
	}

	numBlocks = targetBytes / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}

	return frameSize, blockSize, numBlocks, nil
}

func align(n, to int) int {
	return ((n + to - 1) / to) * to
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return (a * b) / gcd(a, b)
}
