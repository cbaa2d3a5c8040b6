// Package bitmap implements a fixed-size bit array with set/reset/test and
// "find first zero" (ffz), in two flavors: heap-allocated, and an overlay on
// top of a buffer the caller already owns (so bits can live inside a
// serialized structure such as the superblock).
package bitmap

import (
	"fmt"

	gobitmap "github.com/boljen/go-bitmap"
)

// NotFound is the sentinel FFZ returns when every bit is set.
const NotFound = -1

// Bitmap is a fixed-length bit array, LSB-first within each byte (the same
// ordering github.com/boljen/go-bitmap uses internally, since Bitmap is a
// thin wrapper around it).
type Bitmap struct {
	bits  gobitmap.Bitmap
	nbits int
	// owned is false for overlay bitmaps: the destructor (in a systems
	// language) must not free buf. In Go this only affects documentation,
	// since the GC handles the rest, but it's recorded to make the two
	// constructors' contracts explicit.
	owned bool
}

// New creates a heap-allocated bitmap of nbits bits, all initially clear.
func New(nbits int) *Bitmap {
	return &Bitmap{
		bits:  gobitmap.New(nbits),
		nbits: nbits,
		owned: true,
	}
}

// Overlay wraps buf as a bitmap of nbits bits without copying or allocating.
// buf must be at least ceil(nbits/8) bytes long. The caller retains ownership
// of buf; writes through the returned Bitmap mutate buf in place, which is
// exactly what's needed when the bitmap is itself a field inside a larger
// serialized struct (e.g. the superblock's inode bitmap).
func Overlay(buf []byte, nbits int) (*Bitmap, error) {
	minBytes := (nbits + 7) / 8
	if len(buf) < minBytes {
		return nil, fmt.Errorf(
			"bitmap: buffer too small for %d bits: need %d bytes, got %d",
			nbits, minBytes, len(buf))
	}
	return &Bitmap{
		bits:  gobitmap.Bitmap(buf),
		nbits: nbits,
		owned: false,
	}, nil
}

func (b *Bitmap) checkRange(i int) error {
	if i < 0 || i >= b.nbits {
		return fmt.Errorf("bitmap: index %d out of range [0, %d)", i, b.nbits)
	}
	return nil
}

// Len returns the number of bits in the bitmap.
func (b *Bitmap) Len() int {
	return b.nbits
}

// Set marks bit i as allocated/true.
func (b *Bitmap) Set(i int) error {
	if err := b.checkRange(i); err != nil {
		return err
	}
	b.bits.Set(i, true)
	return nil
}

// Reset marks bit i as free/false.
func (b *Bitmap) Reset(i int) error {
	if err := b.checkRange(i); err != nil {
		return err
	}
	b.bits.Set(i, false)
	return nil
}

// Test returns whether bit i is set.
func (b *Bitmap) Test(i int) (bool, error) {
	if err := b.checkRange(i); err != nil {
		return false, err
	}
	return b.bits.Get(i), nil
}

// FFZ returns the index of the first clear bit, or NotFound if every bit in
// the bitmap is set. It never fails.
func (b *Bitmap) FFZ() int {
	for i := 0; i < b.nbits; i++ {
		if !b.bits.Get(i) {
			return i
		}
	}
	return NotFound
}

// Data returns the raw backing bytes. For an overlay bitmap this is the same
// slice passed to Overlay.
func (b *Bitmap) Data() []byte {
	return b.bits.Data(false)
}
