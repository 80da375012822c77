//go:build !darwin

package coreaudio

// NewHost returns an error on platforms without a process-tap API. The rest
// of the module still builds and tests anywhere against fake hosts.
func NewHost() (Host, error) {
	return nil, ErrUnsupportedPlatform
}
