// Package qrimage renders QR code PNG images.
//
// It wraps github.com/skip2/go-qrcode for encoding and draws the module
// matrix itself so the foreground can be styled: square, dot or rounded
// modules, square or circular finder eyes in their own color, and an
// optional logo in the center.
package qrimage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
	xdraw "golang.org/x/image/draw"
)

var (
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrInvalidColor = errors.New("invalid color")
	ErrInvalidStyle = errors.New("invalid style")
	ErrRenderFailed = errors.New("failed to render QR code")
)

const (
	DefaultSize = 256
	MaxSize     = 2048

	DefaultColor      = "#000000"
	DefaultBackground = "#ffffff"
)

const (
	PatternSquare  = "square"
	PatternDots    = "dots"
	PatternRounded = "rounded"

	EyeSquare = "square"
	EyeCircle = "circle"
)

const (
	// finder patterns are 7x7 modules
	eyeModules = 7

	dotRadius    = 0.45
	cornerRadius = 0.35

	// logo box side relative to the image side
	logoRatio = 0.22
)

type Options struct {
	Size       int
	Color      string
	Background string

	PatternStyle string
	EyeStyle     string
	// EyeColor defaults to Color.
	EyeColor string

	Logo image.Image
}

// Render encodes content as a PNG QR code.
func Render(content string, opts Options) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	fg, err := ParseColor(orDefault(opts.Color, DefaultColor))
	if err != nil {
		return nil, err
	}
	bg, err := ParseColor(orDefault(opts.Background, DefaultBackground))
	if err != nil {
		return nil, err
	}
	eye, err := ParseColor(orDefault(opts.EyeColor, orDefault(opts.Color, DefaultColor)))
	if err != nil {
		return nil, err
	}

	module, err := moduleShape(opts.PatternStyle)
	if err != nil {
		return nil, err
	}
	eyes, err := eyeShape(opts.EyeStyle)
	if err != nil {
		return nil, err
	}

	// A centered logo hides data modules, so it needs the highest recovery level.
	level := skipqrcode.Medium
	if opts.Logo != nil {
		level = skipqrcode.Highest
	}

	code, err := skipqrcode.New(content, level)
	if err != nil {
		return nil, errors.Join(ErrRenderFailed, err)
	}

	c := canvas{
		bitmap:   code.Bitmap(),
		size:     size,
		fg:       fg,
		bg:       bg,
		eye:      eye,
		module:   module,
		eyeShape: eyes,
	}
	img := c.draw()
	if opts.Logo != nil {
		drawLogo(img, opts.Logo, bg)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Join(ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}

// shape reports whether the point (u, v) inside a unit module is painted.
type shape func(u, v float64) bool

func moduleShape(style string) (shape, error) {
	switch orDefault(style, PatternSquare) {
	case PatternSquare:
		return func(_, _ float64) bool { return true }, nil
	case PatternDots:
		return func(u, v float64) bool {
			du, dv := u-0.5, v-0.5
			return du*du+dv*dv <= dotRadius*dotRadius
		}, nil
	case PatternRounded:
		return func(u, v float64) bool {
			du := math.Max(math.Abs(u-0.5)-(0.5-cornerRadius), 0)
			dv := math.Max(math.Abs(v-0.5)-(0.5-cornerRadius), 0)
			return du*du+dv*dv <= cornerRadius*cornerRadius
		}, nil
	default:
		return nil, fmt.Errorf("%w: pattern %q", ErrInvalidStyle, style)
	}
}

// eyeShape returns nil for square eyes, which follow the bitmap as-is.
// Circle eyes are drawn as a ring and a pupil around the finder center.
func eyeShape(style string) (shape, error) {
	switch orDefault(style, EyeSquare) {
	case EyeSquare:
		return nil, nil
	case EyeCircle:
		return func(x, y float64) bool {
			d := math.Hypot(x, y)
			return (d >= 2.5 && d <= 3.5) || d <= 1.5
		}, nil
	default:
		return nil, fmt.Errorf("%w: eye %q", ErrInvalidStyle, style)
	}
}

type canvas struct {
	bitmap [][]bool
	size   int

	fg, bg, eye color.RGBA

	module   shape
	eyeShape shape
}

func (c canvas) draw() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.size, c.size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c.bg}, image.Point{}, draw.Src)

	n := len(c.bitmap)
	eyes := finderOrigins(c.bitmap)
	scale := float64(n) / float64(c.size)

	for y := 0; y < c.size; y++ {
		fy := (float64(y) + 0.5) * scale
		my := int(fy)
		for x := 0; x < c.size; x++ {
			fx := (float64(x) + 0.5) * scale
			mx := int(fx)

			if origin, ok := eyeAt(eyes, mx, my); ok {
				if c.eyePixel(origin, fx, fy, mx, my) {
					img.SetRGBA(x, y, c.eye)
				}
				continue
			}

			if c.bitmap[my][mx] && c.module(fx-float64(mx), fy-float64(my)) {
				img.SetRGBA(x, y, c.fg)
			}
		}
	}
	return img
}

func (c canvas) eyePixel(origin image.Point, fx, fy float64, mx, my int) bool {
	if c.eyeShape == nil {
		return c.bitmap[my][mx]
	}
	center := float64(eyeModules) / 2
	return c.eyeShape(fx-float64(origin.X)-center, fy-float64(origin.Y)-center)
}

// finderOrigins locates the top-left module of the three finder patterns.
// The quiet zone width is the offset of the first dark module.
func finderOrigins(bitmap [][]bool) []image.Point {
	n := len(bitmap)
	border := quietZone(bitmap)
	far := n - border - eyeModules
	return []image.Point{{X: border, Y: border}, {X: far, Y: border}, {X: border, Y: far}}
}

func quietZone(bitmap [][]bool) int {
	for i, row := range bitmap {
		for _, dark := range row {
			if dark {
				return i
			}
		}
	}
	return 0
}

func eyeAt(origins []image.Point, mx, my int) (image.Point, bool) {
	for _, o := range origins {
		if mx >= o.X && mx < o.X+eyeModules && my >= o.Y && my < o.Y+eyeModules {
			return o, true
		}
	}
	return image.Point{}, false
}

// drawLogo scales logo into a padded box of background color at the center.
func drawLogo(img *image.RGBA, logo image.Image, bg color.RGBA) {
	side := img.Bounds().Dx()
	box := int(float64(side) * logoRatio)
	if box <= 0 {
		return
	}
	offset := (side - box) / 2
	boxRect := image.Rect(offset, offset, offset+box, offset+box)
	draw.Draw(img, boxRect, &image.Uniform{C: bg}, image.Point{}, draw.Src)

	pad := box / 10
	inner := boxRect.Inset(pad)

	src := logo.Bounds()
	if src.Empty() || inner.Empty() {
		return
	}
	w, h := inner.Dx(), inner.Dy()
	if src.Dx() > src.Dy() {
		h = w * src.Dy() / src.Dx()
	} else {
		w = h * src.Dx() / src.Dy()
	}
	x := inner.Min.X + (inner.Dx()-w)/2
	y := inner.Min.Y + (inner.Dy()-h)/2

	xdraw.CatmullRom.Scale(img, image.Rect(x, y, x+w, y+h), logo, src, xdraw.Over, nil)
}

// ParseColor accepts #rgb and #rrggbb, with or without the leading '#'.
func ParseColor(hex string) (color.RGBA, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")

	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}

	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// NormalizeColor returns hex in canonical lower-case #rrggbb form.
func NormalizeColor(hex string) (string, error) {
	c, err := ParseColor(hex)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
