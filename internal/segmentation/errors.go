package segmentation

import "errors"

var (
	// ErrMalformedImage изображение пустое или не декодируется.
	ErrMalformedImage = errors.New("malformed image")
	// ErrModelUnavailable модель не загружена.
	ErrModelUnavailable = errors.New("model is not available")
	// ErrModelFailure ошибка во время прямого прохода модели.
	ErrModelFailure = errors.New("model inference failed")
	// ErrUnexpectedOutput выход модели неподходящей формы.
	ErrUnexpectedOutput = errors.New("unexpected model output")
)
