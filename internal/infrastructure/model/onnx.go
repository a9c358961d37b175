package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"tumor-scan/internal/domain/entity"
	"tumor-scan/internal/domain/port"
)

// Options задаёт расположение модели.
type Options struct {
	ModelPath    string
	MetadataPath string // пусто: DefaultMetadata(Size, Channels)
	LibraryPath  string // путь к libonnxruntime, пусто: системный
	Size         int
	Channels     int
}

// ONNXModel модель сегментации на ONNX Runtime. Загружается один раз и
// переиспользуется; сессия связана с одной парой тензоров, поэтому вызовы
// Predict выполняются по очереди.
type ONNXModel struct {
	Metadata Metadata

	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewONNXModel инициализирует окружение ONNX Runtime и создаёт сессию.
func NewONNXModel(opts Options) (*ONNXModel, error) {
	metadata := DefaultMetadata(opts.Size, opts.Channels)
	if opts.MetadataPath != "" {
		var err error
		if metadata, err = LoadMetadata(opts.MetadataPath); err != nil {
			return nil, err
		}
	}
	if err := metadata.Validate(opts.Size, opts.Channels); err != nil {
		return nil, err
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXModel{
		Metadata:     metadata,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Predict копирует вход в тензор сессии, выполняет прямой проход и возвращает копию выхода.
func (m *ONNXModel) Predict(ctx context.Context, input entity.Tensor) (entity.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return entity.Tensor{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dst := m.inputTensor.GetData()
	if len(input.Data) != len(dst) {
		return entity.Tensor{}, fmt.Errorf("input has %d values, model expects %d", len(input.Data), len(dst))
	}
	copy(dst, input.Data)

	if err := m.session.Run(); err != nil {
		return entity.Tensor{}, fmt.Errorf("inference failed: %w", err)
	}

	shape := make([]int, len(m.Metadata.OutputShape))
	for i, d := range m.Metadata.OutputShape {
		shape[i] = int(d)
	}
	return entity.Tensor{
		Shape: shape,
		Data:  append([]float32(nil), m.outputTensor.GetData()...),
	}, nil
}

// Close освобождает сессию, тензоры и окружение ONNX Runtime.
func (m *ONNXModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inputTensor != nil {
		m.inputTensor.Destroy()
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
	}
	if m.session != nil {
		m.session.Destroy()
	}
	ort.DestroyEnvironment()
}

// Проверка реализации интерфейса
var _ port.Model = (*ONNXModel)(nil)
