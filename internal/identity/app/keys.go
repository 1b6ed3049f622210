package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/orgstack/identity/pkg/cryptox"
	"github.com/orgstack/identity/pkg/jwtx"
)

// loadOrGenerateSigner reads the Ed25519 signing key at path, generating and
// persisting a fresh one on first start.
func loadOrGenerateSigner(path, kid string) (*jwtx.EdDSASigner, error) {
	path = filepath.Clean(path)

	pemKey, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		pemKey, err = cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("create key directory: %w", err)
		}
		if err := os.WriteFile(path, pemKey, 0600); err != nil {
			return nil, fmt.Errorf("persist signing key: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	if err := signer.Validate(); err != nil {
		return nil, err
	}
	return signer, nil
}
