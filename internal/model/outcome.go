package model

// Box is a single detected object in pixel coordinates of the source image.
type Box struct {
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// Outcome is what a detector reports for one image and one category.
type Outcome struct {
	Present    bool
	Confidence float64 // best matching box, 0 when nothing matched
	Boxes      []Box
}
