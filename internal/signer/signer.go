package signer

// Signer signs curation reports
type Signer interface {
	// SignDetached creates an armored detached signature (report.json.asc)
	SignDetached(data []byte) ([]byte, error)

	// GetPublicKey returns the armored public key
	GetPublicKey() ([]byte, error)
}
