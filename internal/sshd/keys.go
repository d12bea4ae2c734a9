package sshd

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// Ed25519Key is the host key identity. One key is generated per process
// start and reused across enable cycles, never persisted.
type Ed25519Key struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	signer     ssh.Signer
}

func NewEd25519Key() (*Ed25519Key, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	signer, err := ssh.NewSignerFromKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("new signer: %w", err)
	}

	return &Ed25519Key{
		privateKey: privateKey,
		publicKey:  publicKey,
		signer:     signer,
	}, nil
}

// Signer returns the host key in the form the server config consumes
func (k *Ed25519Key) Signer() ssh.Signer {
	return k.signer
}

// GetPublicKey returns the public key in SSH format
func (k *Ed25519Key) GetPublicKey() ([]byte, error) {
	sshPubKey, err := ssh.NewPublicKey(k.publicKey)
	if err != nil {
		return nil, fmt.Errorf("new public key: %w", err)
	}

	return ssh.MarshalAuthorizedKey(sshPubKey), nil
}

// Fingerprint returns the SHA256 fingerprint of the public key
func (k *Ed25519Key) Fingerprint() (string, error) {
	sshPubKey, err := ssh.NewPublicKey(k.publicKey)
	if err != nil {
		return "", fmt.Errorf("new public key: %w", err)
	}

	return ssh.FingerprintSHA256(sshPubKey), nil
}

// GetPrivateKey returns the private key in PEM format
func (k *Ed25519Key) GetPrivateKey() ([]byte, error) {
	privKeyBytes, err := x509.MarshalPKCS8PrivateKey(k.privateKey)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	pemKey := &pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privKeyBytes,
	}

	return pem.EncodeToMemory(pemKey), nil
}
