package vision

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestResizeImage(t *testing.T) {
	src := solidImage(200, 100, color.RGBA{R: 255, A: 255})
	dst := resizeImage(src, 50, 50)

	bounds := dst.Bounds()
	if bounds.Dx() != 50 || bounds.Dy() != 50 {
		t.Fatalf("resized bounds got = %v, want 50x50", bounds)
	}

	r, _, _, _ := dst.At(25, 25).RGBA()
	if r>>8 != 255 {
		t.Errorf("resized pixel lost color, red = %d", r>>8)
	}
}

func TestResizeImageNoopOnSameSize(t *testing.T) {
	src := solidImage(64, 64, color.RGBA{G: 128, A: 255})
	if resizeImage(src, 64, 64) != image.Image(src) {
		t.Error("same-size resize should return the source image")
	}
}

func TestImageToCHW(t *testing.T) {
	img := solidImage(4, 4, color.RGBA{R: 255, G: 0, B: 127, A: 255})
	data := imageToCHW(img, 4, 4, 1.0/127.5, -1.0)

	if len(data) != 3*4*4 {
		t.Fatalf("tensor length got = %d, want = %d", len(data), 3*4*4)
	}

	plane := 4 * 4
	// R channel: 255 maps to 1, G: 0 maps to -1, B: 127 maps to ~0.
	if math.Abs(float64(data[0]-1.0)) > 1e-3 {
		t.Errorf("red channel got = %v, want ~1.0", data[0])
	}
	if math.Abs(float64(data[plane]+1.0)) > 1e-3 {
		t.Errorf("green channel got = %v, want ~-1.0", data[plane])
	}
	if math.Abs(float64(data[2*plane])) > 0.01 {
		t.Errorf("blue channel got = %v, want ~0", data[2*plane])
	}
}

func TestCropFace(t *testing.T) {
	src := solidImage(100, 100, color.RGBA{B: 200, A: 255})

	crop := cropFace(src, [4]float32{20, 20, 60, 60})
	if crop == nil {
		t.Fatal("valid bbox produced nil crop")
	}
	// 40px box with 10% margin on each side.
	if crop.Bounds().Dx() != 48 || crop.Bounds().Dy() != 48 {
		t.Errorf("crop size got = %dx%d, want 48x48", crop.Bounds().Dx(), crop.Bounds().Dy())
	}

	// Box hanging past the edge gets clamped, not rejected.
	edge := cropFace(src, [4]float32{80, 80, 120, 120})
	if edge == nil {
		t.Fatal("edge bbox produced nil crop")
	}
	if edge.Bounds().Max.X > 100 || edge.Bounds().Max.Y > 100 {
		t.Errorf("crop leaked past image bounds: %v", edge.Bounds())
	}

	// Degenerate box.
	if cropFace(src, [4]float32{50, 50, 50, 50}) != nil {
		t.Error("zero-area bbox should produce nil")
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("squared norm got = %v, want 1", sum)
	}

	// Zero vector stays put instead of dividing by zero.
	z := []float32{0, 0, 0}
	normalize(z)
	for i, x := range z {
		if x != 0 {
			t.Errorf("zero vector changed at %d: %v", i, x)
		}
	}
}

func TestSuppressOverlaps(t *testing.T) {
	dets := []Detection{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.9},
		{BBox: [4]float32{1, 1, 11, 11}, Confidence: 0.8}, // heavy overlap with first
		{BBox: [4]float32{50, 50, 60, 60}, Confidence: 0.7},
	}

	kept := suppressOverlaps(dets, 0.4)
	if len(kept) != 2 {
		t.Fatalf("kept %d detections, want 2", len(kept))
	}
	if kept[0].Confidence != 0.9 {
		t.Errorf("highest confidence not kept first: %v", kept[0].Confidence)
	}
	if kept[1].BBox != [4]float32{50, 50, 60, 60} {
		t.Errorf("distant detection dropped: %v", kept[1].BBox)
	}
}

func TestIOU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     [4]float32
		expected float32
	}{
		{"identical", [4]float32{0, 0, 10, 10}, [4]float32{0, 0, 10, 10}, 1},
		{"disjoint", [4]float32{0, 0, 10, 10}, [4]float32{20, 20, 30, 30}, 0},
		{"half overlap", [4]float32{0, 0, 10, 10}, [4]float32{5, 0, 15, 10}, 1.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := iou(tt.a, tt.b)
			if math.Abs(float64(got-tt.expected)) > 1e-6 {
				t.Errorf("iou() got = %v, want = %v", got, tt.expected)
			}
		})
	}
}
