package vision

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInitOnce sync.Once
var ortInitErr error

// InitRuntime initializes the ONNX Runtime environment. Safe to call more
// than once. Honors ONNXRUNTIME_LIB_PATH for a non-default shared library
// location.
func InitRuntime() error {
	ortInitOnce.Do(func() {
		if libPath := os.Getenv("ONNXRUNTIME_LIB_PATH"); libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		} else if runtime.GOOS == "linux" {
			ort.SetSharedLibraryPath("/usr/lib/libonnxruntime.so")
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// Extractor decodes photos and turns every face it finds into an embedding.
type Extractor struct {
	detector *Detector
	embedder *Embedder
	mu       sync.Mutex // ORT sessions hold fixed tensors; one inference at a time
}

// NewExtractor loads the detection and embedding models from modelsDir.
// Expects det_10g.onnx and w600k_r50.onnx inside.
func NewExtractor(modelsDir string, detectionThreshold float32) (*Extractor, error) {
	if err := InitRuntime(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	detector, err := NewDetector(filepath.Join(modelsDir, "det_10g.onnx"), detectionThreshold)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	embedder, err := NewEmbedder(filepath.Join(modelsDir, "w600k_r50.onnx"))
	if err != nil {
		detector.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	slog.Info("vision models loaded", "dir", modelsDir, "dim", EmbeddingDim)
	return &Extractor{detector: detector, embedder: embedder}, nil
}

// ExtractFaces decodes imageData and returns one embedding per detected
// face. A photo with no faces yields an empty slice and no error.
func (x *Extractor) ExtractFaces(imageData []byte) ([][]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	detInput := imageToCHW(resizeImage(img, 640, 640), 640, 640, 1.0/128.0, -127.5/128.0)
	detections, err := x.detector.Detect(detInput, origW, origH)
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, 0, len(detections))
	for _, det := range detections {
		crop := cropFace(img, det.BBox)
		if crop == nil {
			continue
		}
		faceSize := x.embedder.InputSize()
		faceInput := imageToCHW(resizeImage(crop, faceSize, faceSize), faceSize, faceSize, 1.0/127.5, -1.0)
		emb, err := x.embedder.Embed(faceInput)
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, emb)
	}

	return embeddings, nil
}

func (x *Extractor) Close() {
	x.detector.Close()
	x.embedder.Close()
}

// imageToCHW converts an RGBA-ish image to a CHW float32 tensor of the
// given size, applying v*scale+bias per channel value.
func imageToCHW(img image.Image, w, h int, scale, bias float32) []float32 {
	data := make([]float32, 3*w*h)
	bounds := img.Bounds()
	plane := w * h

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*w + x
			data[i] = float32(r>>8)*scale + bias
			data[plane+i] = float32(g>>8)*scale + bias
			data[2*plane+i] = float32(b>>8)*scale + bias
		}
	}
	return data
}

// resizeImage does nearest-neighbor resize to w x h.
func resizeImage(img image.Image, w, h int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == w && srcH == h {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srcY := bounds.Min.Y + y*srcH/h
		for x := 0; x < w; x++ {
			srcX := bounds.Min.X + x*srcW/w
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}
	return dst
}

// cropFace cuts the face bbox out of the image with a small margin.
// Returns nil when the box degenerates to an empty region.
func cropFace(img image.Image, bbox [4]float32) image.Image {
	bounds := img.Bounds()

	marginX := (bbox[2] - bbox[0]) * 0.1
	marginY := (bbox[3] - bbox[1]) * 0.1

	x1 := bounds.Min.X + int(bbox[0]-marginX)
	y1 := bounds.Min.Y + int(bbox[1]-marginY)
	x2 := bounds.Min.X + int(bbox[2]+marginX)
	y2 := bounds.Min.Y + int(bbox[3]+marginY)

	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}
	if x2 <= x1 || y2 <= y1 {
		return nil
	}

	rect := image.Rect(x1, y1, x2, y2)
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			dst.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return dst
}
