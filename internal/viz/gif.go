package viz

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"
	"os"
)

// EncodeGIF writes frames as a looping animation. delay is in 100ths of a
// second per frame. Frames that are not already paletted are converted to
// FramePalette.
func EncodeGIF(w io.Writer, frames []image.Image, delay int) error {
	if len(frames) == 0 {
		return errors.New("no frames to encode")
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range frames {
		anim.Image = append(anim.Image, toPaletted(frame))
		anim.Delay = append(anim.Delay, delay)
	}
	return gif.EncodeAll(w, &anim)
}

// SaveGIF is EncodeGIF to a file.
func SaveGIF(path string, frames []image.Image, delay int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create gif: %w", err)
	}
	if err := EncodeGIF(f, frames, delay); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FrameDelay converts a framerate in Hz to a GIF delay.
func FrameDelay(framerate float64) int {
	if framerate <= 0 {
		return 2
	}
	d := int(100/framerate + 0.5)
	if d < 1 {
		return 1
	}
	return d
}

func toPaletted(img image.Image) *image.Paletted {
	if p, ok := img.(*image.Paletted); ok {
		return p
	}
	p := image.NewPaletted(img.Bounds(), FramePalette)
	draw.Draw(p, p.Bounds(), img, img.Bounds().Min, draw.Src)
	return p
}
