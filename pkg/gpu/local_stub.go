//go:build !cgo

package gpu

// LocalDevices always fails in the no-cgo build.
func LocalDevices() ([]Device, error) {
	return nil, ErrNVMLUnavailable
}
