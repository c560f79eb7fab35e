// Package tls builds the certificate configuration used for STARTTLS.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

// certValidity is how long a generated certificate stays valid.
const certValidity = 365 * 24 * time.Hour

// ErrIncompleteKeyPair is returned when only one of the certificate and key
// paths is set.
var ErrIncompleteKeyPair = errors.New("both TLS_CERT_FILE and TLS_KEY_FILE must be set")

// GenerateSelfSignedCert creates an in-memory ECDSA P-256 certificate for
// hostname. localhost and 127.0.0.1 are always included as SANs so local
// clients can verify against it.
func GenerateSelfSignedCert(hostname string) (tls.Certificate, error) {
	if hostname == "" {
		hostname = "localhost"
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: hostname},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	addSAN(template, hostname)
	addSAN(template, "localhost")
	addSAN(template, "127.0.0.1")

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

func addSAN(c *x509.Certificate, name string) {
	if ip := net.ParseIP(name); ip != nil {
		for _, existing := range c.IPAddresses {
			if existing.Equal(ip) {
				return
			}
		}
		c.IPAddresses = append(c.IPAddresses, ip)
		return
	}
	for _, existing := range c.DNSNames {
		if existing == name {
			return
		}
	}
	c.DNSNames = append(c.DNSNames, name)
}

// LoadOrGenerateTLS loads the PEM key pair at certFile and keyFile, or
// generates a self-signed certificate for hostname when both are empty.
func LoadOrGenerateTLS(certFile, keyFile, hostname string) (*tls.Config, error) {
	var cert tls.Certificate

	switch {
	case certFile == "" && keyFile == "":
		generated, err := GenerateSelfSignedCert(hostname)
		if err != nil {
			return nil, fmt.Errorf("self-signed certificate: %w", err)
		}
		cert = generated
	case certFile == "" || keyFile == "":
		return nil, ErrIncompleteKeyPair
	default:
		loaded, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load key pair: %w", err)
		}
		cert = loaded
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
