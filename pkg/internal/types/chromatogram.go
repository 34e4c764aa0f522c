package types

// Chromatogram is an LC-MS trace: intensity readings ordered by retention time.
// RetentionTime and Intensity always have the same length.
type Chromatogram struct {
	Name          string    `json:"name,omitempty"`
	RetentionTime []float64 `json:"retention_time"`
	Intensity     []float64 `json:"intensity"`
}

// Len returns the number of samples.
func (c Chromatogram) Len() int {
	return len(c.RetentionTime)
}

// Validate checks the length invariant and rejects empty traces.
func (c Chromatogram) Validate() error {
	if len(c.RetentionTime) != len(c.Intensity) {
		return NewInputError("chromatogram.validate", ErrLengthMismatch)
	}
	if len(c.RetentionTime) == 0 {
		return NewInputError("chromatogram.validate", ErrEmptyDataset)
	}
	return nil
}
