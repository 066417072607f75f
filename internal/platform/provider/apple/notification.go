package apple

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt"
)

// Apple Root CA - G3, the trust anchor for App Store server notification
// signing certificates.
const appleRootCAG3PEM = `-----BEGIN CERTIFICATE-----
MIICQzCCAcmgAwIBAgIILcX8iNLFS5UwCgYIKoZIzj0EAwMwZzEbMBkGA1UEAwwS
QXBwbGUgUm9vdCBDQSAtIEczMSYwJAYDVQQLDB1BcHBsZSBDZXJ0aWZpY2F0aW9u
IEF1dGhvcml0eTETMBEGA1UECgwKQXBwbGUgSW5jLjELMAkGA1UEBhMCVVMwHhcN
MTQwNDMwMTgxOTA2WhcNMzkwNDMwMTgxOTA2WjBnMRswGQYDVQQDDBJBcHBsZSBS
b290IENBIC0gRzMxJjAkBgNVBAsMHUFwcGxlIENlcnRpZmljYXRpb24gQXV0aG9y
aXR5MRMwEQYDVQQKDApBcHBsZSBJbmMuMQswCQYDVQQGEwJVUzB2MBAGByqGSM49
AgEGBSuBBAAiA2IABJjpLz1AcqTtkyJygRMc3RCV8cWjTnHcFBbZDuWmBSp3ZHtf
TjjTuxxEtX/1H7YyYl3J6YRbTzBPEVoA/VhYDKX1DyxNB0cTddqXl5dvMVztK517
IDvYuVTZXpmkOlEKMaNCMEAwHQYDVR0OBBYEFLuw3qFYM4iapIqZ3r6966/ayySr
MA8GA1UdEwEB/wQFMAMBAf8wDgYDVR0PAQH/BAQDAgEGMAoGCCqGSM49BAMDA2gA
MGUCMQCD6cHEFl4aXTQY2e3v9GwOAEZLuN+yRhHFD/3meoyhpmvOwgPUnPWTxnS4
at+qIxUCMG1mihDK1A3UT82NQz60imOlM27jbdoXt2QfyFMm+YhidDkLF1vLUagM
6BgD56KyKA==
-----END CERTIFICATE-----`

// NotificationRequest is the raw webhook body sent by App Store Server
// Notifications V2.
type NotificationRequest struct {
	SignedPayload string `json:"signedPayload"`
}

type notificationHeader struct {
	Alg string   `json:"alg"`
	X5c []string `json:"x5c"`
}

// NotificationPayload is the decoded outer JWS payload.
type NotificationPayload struct {
	NotificationType string `json:"notificationType"`
	Subtype          string `json:"subtype"`
	NotificationUUID string `json:"notificationUUID"`
	Data             struct {
		Environment           string `json:"environment"`
		BundleID              string `json:"bundleId"`
		SignedTransactionInfo string `json:"signedTransactionInfo"`
		SignedRenewalInfo     string `json:"signedRenewalInfo"`
	} `json:"data"`
	SignedDate int64 `json:"signedDate"`
}

func (p *NotificationPayload) Valid() error { return nil }

// TransactionInfo is the decoded signedTransactionInfo JWS payload.
type TransactionInfo struct {
	TransactionID         string  `json:"transactionId"`
	OriginalTransactionID string  `json:"originalTransactionId"`
	ProductID             string  `json:"productId"`
	BundleID              string  `json:"bundleId"`
	AppAccountToken       string  `json:"appAccountToken"`
	PurchaseDate          int64   `json:"purchaseDate"`
	ExpiresDate           int64   `json:"expiresDate"`
	RevocationDate        int64   `json:"revocationDate"`
	RevocationReason      *int    `json:"revocationReason"`
	Price                 int64   `json:"price"`
	Currency              string  `json:"currency"`
	Type                  string  `json:"type"`
}

func (t *TransactionInfo) Valid() error { return nil }

// RenewalInfo is the decoded signedRenewalInfo JWS payload.
type RenewalInfo struct {
	OriginalTransactionID string `json:"originalTransactionId"`
	AutoRenewProductID    string `json:"autoRenewProductId"`
	AutoRenewStatus       int    `json:"autoRenewStatus"`
	RenewalDate           int64  `json:"renewalDate"`
	ExpirationIntent      int    `json:"expirationIntent"`
}

func (r *RenewalInfo) Valid() error { return nil }

// Notification is a verified App Store server notification with its inner
// payloads decoded.
type Notification struct {
	Payload            *NotificationPayload
	TransactionInfo    *TransactionInfo
	RenewalInfo        *RenewalInfo
	IsTestNotification bool
	IsSandbox          bool

	rootCertPEM string
}

// ParseNotification verifies the JWS certificate chain against the Apple root
// CA and decodes the payload plus the signed transaction and renewal info.
func ParseNotification(signedPayload string) (*Notification, error) {
	n := &Notification{rootCertPEM: appleRootCAG3PEM}
	if err := n.parse(signedPayload); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Notification) parse(signedPayload string) error {
	// x5c[0] is the leaf whose key signs the JWS, x5c[1] the intermediate.
	// The leaf must chain to the pinned root; verify once for the outer
	// token, the inner tokens carry the same chain.
	leafCert, err := certFromHeader(signedPayload, 0)
	if err != nil {
		return err
	}
	intermediateCert, err := certFromHeader(signedPayload, 1)
	if err != nil {
		return err
	}
	if err := n.verifyChain(leafCert, intermediateCert); err != nil {
		return err
	}

	payload := &NotificationPayload{}
	if err := n.parseSigned(signedPayload, payload); err != nil {
		return err
	}
	n.Payload = payload
	n.IsTestNotification = payload.NotificationType == "TEST"
	n.IsSandbox = payload.Data.Environment == "Sandbox"

	if n.IsTestNotification {
		return nil
	}

	txInfo := &TransactionInfo{}
	if err := n.parseSigned(payload.Data.SignedTransactionInfo, txInfo); err != nil {
		return err
	}
	n.TransactionInfo = txInfo

	if payload.Data.SignedRenewalInfo != "" {
		renewal := &RenewalInfo{}
		if err := n.parseSigned(payload.Data.SignedRenewalInfo, renewal); err != nil {
			return err
		}
		n.RenewalInfo = renewal
	}
	return nil
}

func (n *Notification) parseSigned(token string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return signingKeyFromHeader(token)
	})
	return err
}

func (n *Notification) verifyChain(leafDER, intermediateDER []byte) error {
	roots := x509.NewCertPool()
	if ok := roots.AppendCertsFromPEM([]byte(n.rootCertPEM)); !ok {
		return errors.New("apple root certificate could not be parsed")
	}

	interCert, err := x509.ParseCertificate(intermediateDER)
	if err != nil {
		return errors.New("intermediate certificate could not be parsed")
	}
	intermediates := x509.NewCertPool()
	intermediates.AddCert(interCert)

	leaf, err := x509.ParseCertificate(leafDER)
	if err != nil {
		return err
	}
	_, err = leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	return err
}

func certFromHeader(token string, index int) ([]byte, error) {
	parts := strings.Split(token, ".")
	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, err
	}

	var header notificationHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, err
	}
	if index >= len(header.X5c) {
		return nil, errors.New("x5c header too short")
	}
	return base64.StdEncoding.DecodeString(header.X5c[index])
}

func signingKeyFromHeader(token string) (*ecdsa.PublicKey, error) {
	certDER, err := certFromHeader(token, 0)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, err
	}
	pk, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("app store signing key must be an ecdsa public key")
	}
	return pk, nil
}
