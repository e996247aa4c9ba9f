package effects

import (
	"image"
	"math"

	"github.com/disintegration/gift"
	"github.com/stevecastle/fxlab/surface"
)

type glow struct{}

func (glow) ID() string { return "glow" }

// Apply screens a blurred, brightened copy of the frame over itself.
func (g glow) Apply(s *surface.Surface, in Input) {
	intensity := in.Params.Num("intensity")
	if intensity <= 0 {
		return
	}
	boost := in.Audio.Overall
	original := s.Clone().Image()

	if sat := in.Params.Num("saturation"); sat != 100 {
		f := gift.New(gift.Saturation(float32(sat - 100)))
		dst := image.NewNRGBA(f.Bounds(original.Bounds()))
		f.Draw(dst, original)
		copy(s.Pix(), dst.Pix)
	}

	amount := intensity / 100 * (1 + boost*0.5)
	radius := math.Max(1, in.Params.Num("radius")*(1+boost*0.3))
	gain := float32(1 + (255-in.Params.Num("threshold"))/128)
	f := gift.New(
		gift.GaussianBlur(float32(radius)),
		gift.ColorFunc(func(r, g, b, a float32) (float32, float32, float32, float32) {
			return r * gain, g * gain, b * gain, a
		}),
		gift.Contrast(50),
	)
	halo := image.NewNRGBA(f.Bounds(original.Bounds()))
	f.Draw(halo, original)

	a := clamp01(amount)
	pix := s.Pix()
	for i := 0; i < len(pix); i += 4 {
		for c := 0; c < 3; c++ {
			base := float64(pix[i+c])
			screen := 255 - (255-base)*(255-float64(halo.Pix[i+c]))/255
			pix[i+c] = toByte(base + (screen-base)*a)
		}
	}

	if tint := in.Params.Color("color"); !tint.White() {
		ta := clamp01(amount * 0.3)
		for i := 0; i < len(pix); i += 4 {
			for c, t := range [3]uint8{tint.R, tint.G, tint.B} {
				base := float64(pix[i+c])
				pix[i+c] = toByte(base + (base*float64(t)/255-base)*ta)
			}
		}
	}

	if grain := in.Params.Num("grain"); grain > 0 {
		ga := clamp01(grain / 100 * 0.15 * (1 + boost))
		rnd := frameRand(g.ID(), in.Time)
		w, h := s.Width(), s.Height()
		for y := 0; y < h; y += 8 {
			for x := 0; x < w; x += 8 {
				gray := uint8(rnd.Float64() * 255)
				for yy := y; yy < y+4 && yy < h; yy++ {
					for xx := x; xx < x+4 && xx < w; xx++ {
						j := (yy*w + xx) * 4
						blendOver(pix[j:j+4], gray, gray, gray, ga)
					}
				}
			}
		}
	}
}
