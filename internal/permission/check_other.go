//go:build !darwin

package permission

// Check reports true: there is no accessibility trust store on this platform.
func Check(_ bool) bool {
	return true
}
