package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
)

// ErrSignatureInvalid reports a manifest whose detached signature does not
// verify against the configured key. It is always wrapped together with
// artifact.ErrInvalidManifest.
var ErrSignatureInvalid = errors.New("manifest signature is invalid")

var errEmptyKeyring = errors.New("public keyring is empty")

// SignatureSuffix is appended to the manifest source to find its signature.
const SignatureSuffix = ".asc"

// Verifier checks detached OpenPGP signatures made over raw manifest bytes.
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier reads an armored or binary public keyring.
func NewVerifier(key []byte) (*Verifier, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(key))
	if err != nil {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(key))
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, errEmptyKeyring
	}

	return &Verifier{keyring: keyring}, nil
}

// LoadVerifier reads a public keyring file.
func LoadVerifier(path string) (*Verifier, error) {
	key, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}

	return NewVerifier(key)
}

// Verify checks an armored or binary detached signature over data.
func (v *Verifier) Verify(data, signature []byte) error {
	_, err := openpgp.CheckArmoredDetachedSignature(v.keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	if err != nil {
		_, err = openpgp.CheckDetachedSignature(v.keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	}

	if err != nil {
		return fmt.Errorf("%w: %w: %w", artifact.ErrInvalidManifest, ErrSignatureInvalid, err)
	}

	return nil
}
