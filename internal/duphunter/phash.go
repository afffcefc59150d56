package duphunter

import (
	"bytes"
	"crypto/sha256"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"strings"

	"github.com/nfnt/resize"
)

// perceptualHashFor dispatches to aHash for raster images and SimHash for
// everything else that carries extracted text, per SPEC_FULL.md's
// Open Question resolution: no perceptual-hash or PDF-rasterizer library
// exists anywhere in the retrieval pack, so a PDF's "perceptual" fingerprint
// is a SimHash over its OCR text's 3-shingles instead of its rendered
// pixels. Both return a 64-bit hash comparable by Hamming distance.
func perceptualHashFor(mimeType string, blobContent []byte, extractedText string) (uint64, error) {
	if isImage(mimeType) {
		return averageHash(blobContent)
	}
	if strings.TrimSpace(extractedText) == "" {
		return 0, nil
	}
	return simHash(extractedText), nil
}

// averageHash computes an 8x8 average hash (aHash) of an image: resize to
// 8x8 grayscale, threshold each pixel against the mean, and pack the 64
// bits into a uint64. Same idea as eve's media package's Lanczos3 resize,
// aimed at a fixed small target instead of a display size.
func averageHash(content []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return 0, err
	}
	small := resize.Resize(8, 8, img, resize.Lanczos3)
	bounds := small.Bounds()

	var pixels [64]uint8
	var sum uint32
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := small.At(x, y).RGBA()
			gray := uint8((r + g + b) / 3 >> 8)
			pixels[i] = gray
			sum += uint32(gray)
			i++
		}
	}
	mean := uint8(sum / 64)

	var hash uint64
	for idx, p := range pixels {
		if p >= mean {
			hash |= 1 << uint(idx)
		}
	}
	return hash, nil
}

// simHash computes a 64-bit SimHash over whitespace-token 3-shingles of
// text: each shingle is hashed to 64 bits (sha256, truncated), and each
// bit position's vote across all shingles determines the output bit.
// Near-duplicate texts (same shingles, different order or minor edits)
// land a small Hamming distance apart.
func simHash(text string) uint64 {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0
	}
	const shingleSize = 3
	var votes [64]int
	shingleCount := 0
	for i := 0; i+shingleSize <= len(tokens); i++ {
		shingle := strings.Join(tokens[i:i+shingleSize], " ")
		h := shingleHash(shingle)
		for bit := 0; bit < 64; bit++ {
			if h&(1<<uint(bit)) != 0 {
				votes[bit]++
			} else {
				votes[bit]--
			}
		}
		shingleCount++
	}
	if shingleCount == 0 {
		// fewer than 3 tokens: hash the whole text as a single shingle.
		return shingleHash(text)
	}
	var hash uint64
	for bit, v := range votes {
		if v > 0 {
			hash |= 1 << uint(bit)
		}
	}
	return hash
}

func shingleHash(s string) uint64 {
	sum := sha256.Sum256([]byte(s))
	var h uint64
	for i := 0; i < 8; i++ {
		h |= uint64(sum[i]) << uint(i*8)
	}
	return h
}

// hammingDistance counts differing bits between two 64-bit hashes.
func hammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// phashSimilarity converts a Hamming distance over 64 bits into a
// similarity in [0, 1], per §4.5's "1 - distance/bits".
func phashSimilarity(distance int) float64 {
	return 1 - float64(distance)/64
}
