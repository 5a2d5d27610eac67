package sshtransport

import (
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// parseOpenSSHKey converts an OpenSSH-format private key (optionally
// passphrase-encrypted) to an ssh.Signer. Only Ed25519 and RSA are
// supported; any other algorithm fails with a message directing the user
// to re-export the key in a format this transport understands.
func parseOpenSSHKey(data []byte, passphrase string) (ssh.Signer, error) {
	var (
		raw interface{}
		err error
	)
	if passphrase != "" {
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(data, []byte(passphrase))
	} else {
		raw, err = ssh.ParseRawPrivateKey(data)
	}
	if err != nil {
		return nil, fmt.Errorf("sshtransport: parse openssh key: %w", err)
	}

	switch key := raw.(type) {
	case ed25519.PrivateKey:
		return signerFromPKCS8(key)
	case *rsa.PrivateKey:
		// x509.MarshalPKCS8PrivateKey requires CRT parameters (Dp, Dq,
		// Qinv); OpenSSH-format keys don't always carry them precomputed.
		key.Precompute()
		return signerFromPKCS8(key)
	default:
		return nil, fmt.Errorf(
			"sshtransport: unsupported key algorithm %T; re-export with `ssh-keygen -p -m pem` and retry", raw)
	}
}

func signerFromPKCS8(key interface{}) (ssh.Signer, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("sshtransport: marshal pkcs8: %w", err)
	}
	pemBlock := pemEncode("PRIVATE KEY", der)
	signer, err := ssh.ParsePrivateKey(pemBlock)
	if err != nil {
		return nil, fmt.Errorf("sshtransport: parse converted key: %w", err)
	}
	return signer, nil
}
