package domain

import "time"

// BlendshapeCategory is one raw classifier output for a detected face.
type BlendshapeCategory struct {
	CategoryName string  `json:"categoryName"`
	Score        float64 `json:"score"`
}

// BlendshapeFrame is the category list reported for the first detected face of a frame.
// An empty Categories slice means no face was detected.
type BlendshapeFrame struct {
	Timestamp  time.Time            `json:"timestamp"`
	Categories []BlendshapeCategory `json:"categories"`
}
