package operator

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/textflow/internal/value"
)

// CryptoMode selects encryption or decryption.
type CryptoMode string

const (
	CryptoEncrypt CryptoMode = "encrypt"
	CryptoDecrypt CryptoMode = "decrypt"
)

// CryptoConfig is the typed configuration of a crypto node.
type CryptoConfig struct {
	Mode CryptoMode
	Key  string
}

// saltedMagic prefixes OpenSSL passphrase-mode ciphertext.
var saltedMagic = []byte("Salted__")

const (
	saltLen   = 8
	aesKeyLen = 32
)

var errDecrypt = errors.New("decryption failed (wrong key?)")

func decodeCryptoConfig(cfg value.Object) (CryptoConfig, error) {
	mode, err := stringField(KindCrypto, cfg, "mode", string(CryptoEncrypt))
	if err != nil {
		return CryptoConfig{}, err
	}
	m := CryptoMode(mode)
	if m != CryptoEncrypt && m != CryptoDecrypt {
		return CryptoConfig{}, &ConfigError{Kind: KindCrypto, Field: "mode", Message: fmt.Sprintf("unknown mode %q", mode)}
	}

	key, err := stringField(KindCrypto, cfg, "key", "")
	if err != nil {
		return CryptoConfig{}, err
	}
	if key == "" {
		return CryptoConfig{}, &ConfigError{Kind: KindCrypto, Field: "key", Message: "secret key is required"}
	}
	return CryptoConfig{Mode: m, Key: key}, nil
}

func cryptoDefinition() Definition {
	return Definition{
		Kind:      KindCrypto,
		Name:      "Encrypt / Decrypt",
		Inputs:    inputPorts,
		Outputs:   outputPorts,
		Transform: typed(decodeCryptoConfig, runCrypto),
		Defaults: value.Object{
			"mode": value.String(CryptoEncrypt),
			"key":  value.String(""),
		},
	}
}

func runCrypto(inputs []value.Value, cfg CryptoConfig) ([]value.Value, error) {
	input := firstText(inputs)
	if cfg.Mode == CryptoEncrypt {
		out, err := encryptPassphrase(input, cfg.Key)
		if err != nil {
			return nil, err
		}
		return []value.Value{value.String(out)}, nil
	}

	out, err := decryptPassphrase(input, cfg.Key)
	if err != nil {
		return nil, err
	}
	return []value.Value{value.String(out)}, nil
}

// encryptPassphrase produces OpenSSL-compatible "Salted__" AES-256-CBC
// ciphertext, base64 encoded. The salt is derived from the key and the
// plaintext so the same input always encrypts to the same output.
func encryptPassphrase(plaintext, passphrase string) (string, error) {
	mac := hmac.New(sha256.New, []byte(passphrase))
	mac.Write([]byte(plaintext))
	salt := mac.Sum(nil)[:saltLen]

	key, iv := evpBytesToKey([]byte(passphrase), salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	out := make([]byte, 0, len(saltedMagic)+saltLen+len(ct))
	out = append(out, saltedMagic...)
	out = append(out, salt...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// decryptPassphrase reverses encryptPassphrase. Any structural problem, bad
// padding, non-UTF-8 plaintext or an empty result is reported as errDecrypt.
func decryptPassphrase(ciphertext, passphrase string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext is not base64", errDecrypt)
	}
	header := len(saltedMagic) + saltLen
	if len(raw) <= header || !bytes.HasPrefix(raw, saltedMagic) {
		return "", fmt.Errorf("%w: missing salt header", errDecrypt)
	}
	salt, ct := raw[len(saltedMagic):header], raw[header:]
	if len(ct)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: truncated ciphertext", errDecrypt)
	}

	key, iv := evpBytesToKey([]byte(passphrase), salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	pt, ok := pkcs7Unpad(pt, aes.BlockSize)
	if !ok || len(pt) == 0 || !utf8.Valid(pt) {
		return "", errDecrypt
	}
	return string(pt), nil
}

// evpBytesToKey is OpenSSL's EVP_BytesToKey with MD5 and one iteration:
// D_i = MD5(D_{i-1} || passphrase || salt), concatenated until key and IV
// are filled.
func evpBytesToKey(passphrase, salt []byte) (key, iv []byte) {
	var derived, prev []byte
	for len(derived) < aesKeyLen+aes.BlockSize {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:aesKeyLen], derived[aesKeyLen : aesKeyLen+aes.BlockSize]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
