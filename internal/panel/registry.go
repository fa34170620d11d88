package panel

import "fmt"

// NewDetector creates a detector based on the specified variant
func NewDetector(variant string, params Params) (Detector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	switch variant {
	case "native", "":
		return NewNativeDetector(params), nil
	case "opencv":
		return newOpenCVDetector(params)
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}
