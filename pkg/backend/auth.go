package backend

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthType selects how requests to the execution backend are signed.
type AuthType string

const (
	AuthTypeHMAC AuthType = "hmac"
	AuthTypeJWT  AuthType = "jwt"
)

// Authenticator adds credentials to an outgoing backend request.
type Authenticator interface {
	AddAuthHeaders(req *http.Request, method, path, body string) error
}

// HMACAuthenticator signs requests with a shared API key/secret.
type HMACAuthenticator struct {
	apiKey    string
	apiSecret string
}

func NewHMACAuthenticator(apiKey, apiSecret string) *HMACAuthenticator {
	return &HMACAuthenticator{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

func (a *HMACAuthenticator) AddAuthHeaders(req *http.Request, method, path, body string) error {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature := a.sign(method, path, body, timestamp)

	req.Header.Set("X-RC-ACCESS-KEY", a.apiKey)
	req.Header.Set("X-RC-ACCESS-SIGN", signature)
	req.Header.Set("X-RC-ACCESS-TIMESTAMP", timestamp)

	return nil
}

func (a *HMACAuthenticator) sign(method, path, body, timestamp string) string {
	message := timestamp + method + path + body
	h := hmac.New(sha256.New, []byte(a.apiSecret))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// JWTAuthenticator signs a short-lived ES256 bearer token per request.
type JWTAuthenticator struct {
	keyName    string
	privateKey *ecdsa.PrivateKey
}

func NewJWTAuthenticator(keyName, privateKeyPEM string) (*JWTAuthenticator, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing the private key")
	}

	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS8 format
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EC private key: %w", err)
		}
		var ok bool
		privateKey, ok = key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an EC private key")
		}
	}

	return &JWTAuthenticator{
		keyName:    keyName,
		privateKey: privateKey,
	}, nil
}

func (j *JWTAuthenticator) AddAuthHeaders(req *http.Request, method, path, body string) error {
	token, err := j.generateJWT(method, req.Host, path)
	if err != nil {
		return fmt.Errorf("failed to generate JWT: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (j *JWTAuthenticator) generateJWT(method, host, path string) (string, error) {
	nonce, err := generateNonce()
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"sub":   j.keyName,
		"iss":   "riskcore",
		"nbf":   time.Now().Unix(),
		"exp":   time.Now().Add(2 * time.Minute).Unix(),
		"uri":   method + " " + host + path,
		"nonce": nonce,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = j.keyName

	return token.SignedString(j.privateKey)
}

func generateNonce() (string, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 64)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(n.Bytes()), nil
}
