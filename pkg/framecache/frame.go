package framecache

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Frame is a decoded frame held by the cache.
//
// Frame implements image.Image as a read-only view over the decoded raster:
// the underlying pixels are shared between all readers and are never
// exposed for writing. Use Clone to obtain a mutable copy.
type Frame struct {
	key  Key
	img  image.Image
	size int64
}

func newFrame(key Key, img image.Image) *Frame {
	if f, ok := img.(*Frame); ok {
		img = f.img
	}
	return &Frame{
		key:  key,
		img:  img,
		size: FrameCost(img),
	}
}

// Key returns the cache key the frame is stored under.
func (f *Frame) Key() Key { return f.key }

// Size returns the byte cost of the frame.
func (f *Frame) Size() int64 { return f.size }

// ColorModel implements image.Image.
func (f *Frame) ColorModel() color.Model { return f.img.ColorModel() }

// Bounds implements image.Image.
func (f *Frame) Bounds() image.Rectangle { return f.img.Bounds() }

// At implements image.Image.
func (f *Frame) At(x, y int) color.Color { return f.img.At(x, y) }

// Clone returns a mutable RGBA copy of the frame.
func (f *Frame) Clone() *image.RGBA {
	b := f.img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, f.img, b.Min, draw.Src)
	return dst
}

// FrameCost returns the number of bytes held by img's pixel buffers.
// Unknown image types are costed as 4 bytes per pixel.
func FrameCost(img image.Image) int64 {
	switch m := img.(type) {
	case nil:
		return 0
	case *Frame:
		return m.size
	case *image.RGBA:
		return int64(len(m.Pix))
	case *image.NRGBA:
		return int64(len(m.Pix))
	case *image.RGBA64:
		return int64(len(m.Pix))
	case *image.NRGBA64:
		return int64(len(m.Pix))
	case *image.Gray:
		return int64(len(m.Pix))
	case *image.Gray16:
		return int64(len(m.Pix))
	case *image.Alpha:
		return int64(len(m.Pix))
	case *image.Paletted:
		return int64(len(m.Pix)) + int64(len(m.Palette))*4
	case *image.YCbCr:
		return int64(len(m.Y) + len(m.Cb) + len(m.Cr))
	case *image.NYCbCrA:
		return int64(len(m.Y) + len(m.Cb) + len(m.Cr) + len(m.A))
	}
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
