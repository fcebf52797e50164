package application

import "errors"

var (
	// ErrInvalidQuery is returned when a dashboard query cannot be evaluated.
	ErrInvalidQuery = errors.New("analytics: invalid query")
	// ErrNilDataset is returned when a view is requested without a dataset.
	ErrNilDataset = errors.New("analytics: nil dataset")
	// ErrNilLoader is returned when the service is built without a loader.
	ErrNilLoader = errors.New("analytics: nil workbook loader")
)
