//go:build !darwin

package platform

// processTranslated is only meaningful on darwin.
func processTranslated() (bool, error) {
	return false, nil
}
