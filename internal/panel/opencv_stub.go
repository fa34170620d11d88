//go:build !gocv

package panel

import "fmt"

func newOpenCVDetector(Params) (Detector, error) {
	return nil, fmt.Errorf("opencv detector not available: rebuild with -tags gocv")
}
