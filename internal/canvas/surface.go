// Package canvas provides owned RGBA pixel buffers with explicit
// copy, crop, clear, and composite operations in native image coordinates.
package canvas

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
)

// Surface is an owned pixel buffer. All coordinates are native image pixels;
// the buffer origin is always (0,0).
type Surface struct {
	pix *image.NRGBA
}

// New creates a fully transparent surface of the given size.
func New(width, height int) *Surface {
	if width <= 0 || height <= 0 {
		return nil
	}
	return &Surface{pix: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// FromImage copies an arbitrary image into a new surface.
// The source bounds are normalized to a (0,0) origin.
func FromImage(src image.Image) *Surface {
	if src == nil {
		return nil
	}
	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			dst.Set(x, y, src.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return &Surface{pix: dst}
}

// Width returns the surface width in native pixels.
func (s *Surface) Width() int { return s.pix.Bounds().Dx() }

// Height returns the surface height in native pixels.
func (s *Surface) Height() int { return s.pix.Bounds().Dy() }

// Bounds returns the surface rectangle, always anchored at (0,0).
func (s *Surface) Bounds() image.Rectangle { return s.pix.Bounds() }

// Image exposes the underlying pixel buffer for read-only consumers
// (encoding, compositing). Mutating it bypasses the surface operations.
func (s *Surface) Image() *image.NRGBA { return s.pix }

// At returns the color at the given native pixel, or a zero color outside bounds.
func (s *Surface) At(x, y int) color.NRGBA {
	if !(image.Point{X: x, Y: y}).In(s.pix.Bounds()) {
		return color.NRGBA{}
	}
	return s.pix.NRGBAAt(x, y)
}

// Clone returns an independent deep copy of the surface.
func (s *Surface) Clone() *Surface {
	if s == nil {
		return nil
	}
	dst := image.NewNRGBA(s.pix.Bounds())
	copy(dst.Pix, s.pix.Pix)
	return &Surface{pix: dst}
}

// Crop copies the given region into a new surface anchored at (0,0).
// The region is clipped to the surface bounds; a fully-outside region returns nil.
func (s *Surface) Crop(r image.Rectangle) *Surface {
	r = r.Intersect(s.pix.Bounds())
	if r.Empty() {
		return nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			dst.SetNRGBA(x, y, s.pix.NRGBAAt(r.Min.X+x, r.Min.Y+y))
		}
	}
	return &Surface{pix: dst}
}

// ClearRect sets the given region to fully transparent.
// The region is clipped to the surface bounds.
func (s *Surface) ClearRect(r image.Rectangle) {
	r = r.Intersect(s.pix.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			s.pix.SetNRGBA(x, y, color.NRGBA{})
		}
	}
}

// DrawOver alpha-blends src onto the surface with its top-left corner at (at).
// Pixels falling outside the destination are clipped.
func (s *Surface) DrawOver(src *Surface, at image.Point) {
	if src == nil {
		return
	}

	srcBounds := src.pix.Bounds()
	for sy := srcBounds.Min.Y; sy < srcBounds.Max.Y; sy++ {
		dy := at.Y + sy
		for sx := srcBounds.Min.X; sx < srcBounds.Max.X; sx++ {
			dx := at.X + sx
			if !(image.Point{X: dx, Y: dy}).In(s.pix.Bounds()) {
				continue
			}

			c := src.pix.NRGBAAt(sx, sy)
			if c.A == 0 {
				continue
			}
			if c.A == 255 {
				s.pix.SetNRGBA(dx, dy, c)
				continue
			}

			d := s.pix.NRGBAAt(dx, dy)
			sa := float64(c.A) / 255.0
			da := float64(d.A) / 255.0

			outA := sa + da*(1.0-sa)
			if outA == 0 {
				s.pix.SetNRGBA(dx, dy, color.NRGBA{})
				continue
			}

			blend := func(srcVal, dstVal uint8) uint8 {
				srcPremult := float64(srcVal) * sa
				dstPremult := float64(dstVal) * da
				outPremult := srcPremult + dstPremult*(1.0-sa)
				return uint8(math.Round(outPremult / outA))
			}

			s.pix.SetNRGBA(dx, dy, color.NRGBA{
				R: blend(c.R, d.R),
				G: blend(c.G, d.G),
				B: blend(c.B, d.B),
				A: uint8(math.Round(outA * 255.0)),
			})
		}
	}
}

// Fill sets every pixel to the given color.
func (s *Surface) Fill(c color.NRGBA) {
	b := s.pix.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			s.pix.SetNRGBA(x, y, c)
		}
	}
}

// Equal reports whether two surfaces have identical dimensions and pixels.
func (s *Surface) Equal(other *Surface) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.pix.Bounds() != other.pix.Bounds() {
		return false
	}
	return bytes.Equal(s.pix.Pix, other.pix.Pix)
}

// EncodePNG encodes the surface as PNG bytes.
func (s *Surface) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.pix); err != nil {
		return nil, fmt.Errorf("failed to encode surface: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL encodes the surface as a PNG data URL for host-side persistence.
func (s *Surface) DataURL() (string, error) {
	data, err := s.EncodePNG()
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// DecodeDataURL decodes a PNG data URL back into a surface.
func DecodeDataURL(url string) (*Surface, error) {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(url, prefix) {
		return nil, fmt.Errorf("unsupported data URL format")
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return DecodePNG(data)
}

// DecodePNG decodes PNG bytes into a surface.
func DecodePNG(data []byte) (*Surface, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}
	return FromImage(img), nil
}
