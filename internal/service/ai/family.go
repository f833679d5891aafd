package ai

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"vehicledetect/internal/config"
	"vehicledetect/internal/model"
)

// family describes how to feed a network and read its output.
type family struct {
	name     string
	classIDs map[model.Category]int
	blob     func(img gocv.Mat) gocv.Mat
	decode   func(output gocv.Mat, cols, rows int, classID int, threshold float32) []model.Box
}

// SSD MobileNet COCO graphs use the 91-entry COCO label map.
var ssdFamily = family{
	name: config.FamilySSD,
	classIDs: map[model.Category]int{
		model.CategoryBicycle:    2,
		model.CategoryCar:        3,
		model.CategoryMotorcycle: 4,
		model.CategoryTruck:      8,
	},
	blob: func(img gocv.Mat) gocv.Mat {
		return gocv.BlobFromImage(img, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	},
	decode: decodeSSD,
}

// YOLOv8 exports use the contiguous 80-entry COCO ids.
var yoloFamily = family{
	name: config.FamilyYOLO,
	classIDs: map[model.Category]int{
		model.CategoryBicycle:    1,
		model.CategoryCar:        2,
		model.CategoryMotorcycle: 3,
		model.CategoryTruck:      7,
	},
	blob: func(img gocv.Mat) gocv.Mat {
		return gocv.BlobFromImage(img, 1.0/255.0, image.Pt(yoloInputSize, yoloInputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	},
	decode: decodeYOLO,
}

const (
	yoloInputSize  = 640
	yoloNMSOverlap = 0.45
)

func familyByName(name string) (family, error) {
	switch name {
	case config.FamilySSD:
		return ssdFamily, nil
	case config.FamilyYOLO:
		return yoloFamily, nil
	default:
		return family{}, fmt.Errorf("unknown model family %q", name)
	}
}

// ClassID returns the class id the given family uses for a category.
func ClassID(familyName string, category model.Category) (int, error) {
	f, err := familyByName(familyName)
	if err != nil {
		return 0, err
	}
	id, ok := f.classIDs[category]
	if !ok {
		return 0, fmt.Errorf("%w: %s", model.ErrUnsupportedCategory, category)
	}
	return id, nil
}

func (f family) label(classID int) string {
	for c, id := range f.classIDs {
		if id == classID {
			return string(c)
		}
	}
	return fmt.Sprintf("class%d", classID)
}

// decodeSSD reads rows of [batch_id, class_id, confidence, x1, y1, x2, y2]
// with coordinates normalized to 0..1.
func decodeSSD(output gocv.Mat, cols, rows int, classID int, threshold float32) []model.Box {
	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()

	var boxes []model.Box
	for i := 0; i < reshaped.Rows(); i++ {
		confidence := reshaped.GetFloatAt(i, 2)
		if confidence < threshold {
			continue
		}
		if int(reshaped.GetFloatAt(i, 1)) != classID {
			continue
		}

		x := int(reshaped.GetFloatAt(i, 3) * float32(cols))
		y := int(reshaped.GetFloatAt(i, 4) * float32(rows))
		boxes = append(boxes, model.Box{
			ClassID:    classID,
			Label:      ssdFamily.label(classID),
			Confidence: float64(confidence),
			X:          x,
			Y:          y,
			Width:      int(reshaped.GetFloatAt(i, 5)*float32(cols)) - x,
			Height:     int(reshaped.GetFloatAt(i, 6)*float32(rows)) - y,
		})
	}
	return boxes
}

// decodeYOLO reads a [1, 4+classes, anchors] tensor: rows 0..3 are cx, cy, w, h
// in network input pixels, row 4+k is the score of class k.
func decodeYOLO(output gocv.Mat, cols, rows int, classID int, threshold float32) []model.Box {
	dims := output.Size()
	if len(dims) < 3 || dims[1] <= 4+classID {
		return nil
	}
	attributes := dims[1]

	reshaped := output.Reshape(1, attributes)
	defer reshaped.Close()

	scaleX := float32(cols) / yoloInputSize
	scaleY := float32(rows) / yoloInputSize

	var rects []image.Rectangle
	var scores []float32
	for i := 0; i < reshaped.Cols(); i++ {
		score := reshaped.GetFloatAt(4+classID, i)
		if score < threshold {
			continue
		}
		cx := reshaped.GetFloatAt(0, i)
		cy := reshaped.GetFloatAt(1, i)
		w := reshaped.GetFloatAt(2, i)
		h := reshaped.GetFloatAt(3, i)

		left := int((cx - w/2) * scaleX)
		top := int((cy - h/2) * scaleY)
		rects = append(rects, image.Rect(left, top, left+int(w*scaleX), top+int(h*scaleY)))
		scores = append(scores, score)
	}
	if len(rects) == 0 {
		return nil
	}

	var boxes []model.Box
	for _, idx := range gocv.NMSBoxes(rects, scores, threshold, yoloNMSOverlap) {
		r := rects[idx]
		boxes = append(boxes, model.Box{
			ClassID:    classID,
			Label:      yoloFamily.label(classID),
			Confidence: float64(scores[idx]),
			X:          r.Min.X,
			Y:          r.Min.Y,
			Width:      r.Dx(),
			Height:     r.Dy(),
		})
	}
	return boxes
}
