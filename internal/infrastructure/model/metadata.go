package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metadata описывает входы и выходы ONNX-модели.
type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
}

// DefaultMetadata вход [1,size,size,channels], выход [1,size,size,1].
func DefaultMetadata(size, channels int) Metadata {
	s := int64(size)
	return Metadata{
		InputName:   "input",
		OutputName:  "output",
		InputShape:  []int64{1, s, s, int64(channels)},
		OutputShape: []int64{1, s, s, 1},
	}
}

// LoadMetadata читает JSON с описанием модели. Пустые имена заменяются на input/output.
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if meta.InputName == "" {
		meta.InputName = "input"
	}
	if meta.OutputName == "" {
		meta.OutputName = "output"
	}
	return meta, nil
}

// Validate проверяет, что модель принимает [1,size,size,channels] и отдаёт одну плоскость на батч.
func (m Metadata) Validate(size, channels int) error {
	want := []int64{1, int64(size), int64(size), int64(channels)}
	if len(m.InputShape) != len(want) {
		return fmt.Errorf("model input shape %v, want %v", m.InputShape, want)
	}
	for i := range want {
		if m.InputShape[i] != want[i] {
			return fmt.Errorf("model input shape %v, want %v", m.InputShape, want)
		}
	}

	if len(m.OutputShape) != 4 || m.OutputShape[0] != 1 || m.OutputShape[3] != 1 {
		return fmt.Errorf("model output shape %v, want [1,H,W,1]", m.OutputShape)
	}
	if m.OutputShape[1] <= 0 || m.OutputShape[2] <= 0 {
		return fmt.Errorf("model output shape %v has non-positive dimension", m.OutputShape)
	}
	return nil
}
