package signer

import (
	"bytes"
	"crypto"
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// GPGSigner signs curation reports with an OpenPGP private key
type GPGSigner struct {
	entity *openpgp.Entity
	config *packet.Config
}

// NewGPGSigner loads the first key with a private part from keyPath. The
// file may be ASCII armored or binary.
func NewGPGSigner(keyPath, passphrase string) (*GPGSigner, error) {
	if keyPath == "" {
		return nil, fmt.Errorf("signing key path is empty")
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key %s: %w", keyPath, err)
	}

	keyring, err := readKeyRing(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key %s: %w", keyPath, err)
	}

	for _, entity := range keyring {
		if entity.PrivateKey != nil {
			return NewGPGSignerFromEntity(entity, passphrase)
		}
	}
	return nil, fmt.Errorf("%s holds no private key", keyPath)
}

func readKeyRing(data []byte) (openpgp.EntityList, error) {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN")) {
		return openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	}
	return openpgp.ReadKeyRing(bytes.NewReader(data))
}

// NewGPGSignerFromEntity wraps a parsed entity
func NewGPGSignerFromEntity(entity *openpgp.Entity, passphrase string) (*GPGSigner, error) {
	if entity.PrivateKey == nil {
		return nil, fmt.Errorf("key %X has no private part", entity.PrimaryKey.Fingerprint)
	}
	if err := unlock(entity, []byte(passphrase)); err != nil {
		return nil, err
	}
	return &GPGSigner{
		entity: entity,
		config: &packet.Config{DefaultHash: crypto.SHA512},
	}, nil
}

// unlock decrypts the primary key and any encrypted signing subkeys.
// Subkeys are left locked when no passphrase is given since the primary
// key alone can sign.
func unlock(entity *openpgp.Entity, passphrase []byte) error {
	if entity.PrivateKey.Encrypted {
		if len(passphrase) == 0 {
			return fmt.Errorf("private key is encrypted and no passphrase was given")
		}
		if err := entity.PrivateKey.Decrypt(passphrase); err != nil {
			return fmt.Errorf("failed to unlock private key: %w", err)
		}
	}
	if len(passphrase) == 0 {
		return nil
	}
	for i, sub := range entity.Subkeys {
		if sub.PrivateKey == nil || !sub.PrivateKey.Encrypted {
			continue
		}
		if err := sub.PrivateKey.Decrypt(passphrase); err != nil {
			return fmt.Errorf("failed to unlock subkey %d: %w", i, err)
		}
	}
	return nil
}

// SignDetached returns an armored detached SHA-512 signature of data
func (s *GPGSigner) SignDetached(data []byte) ([]byte, error) {
	var sig bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sig, s.entity, bytes.NewReader(data), s.config); err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig.Bytes(), nil
}

func (s *GPGSigner) GetPublicKey() ([]byte, error) {
	var out bytes.Buffer
	w, err := armor.Encode(&out, openpgp.PublicKeyType, map[string]string{
		"Comment": "apm curation key",
	})
	if err != nil {
		return nil, err
	}
	if err := s.entity.Serialize(w); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to export public key: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
