package model

// Metadata describes the model signature discovered at load time.
type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
	ImageSize   int     `json:"image_size"`
}

// OutputSize is the number of class scores produced per image.
func (m Metadata) OutputSize() int {
	if len(m.OutputShape) == 0 {
		return 0
	}
	return int(m.OutputShape[len(m.OutputShape)-1])
}

// InputSize is the number of floats the model expects per image.
func (m Metadata) InputSize() int {
	return m.ImageSize * m.ImageSize * channels
}
