package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

// DefaultIV is the initialization vector used when none is configured.
const DefaultIV = "2020101441010202"

// Cipher encrypts text with AES-CBC, zero padding and base64 output.
type Cipher struct {
	block cipher.Block
	iv    []byte
}

// NewCipher builds a Cipher. key must be 16, 24 or 32 bytes and iv 16 bytes.
func NewCipher(key, iv string) (*Cipher, error) {
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("invalid cipher key: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("cipher iv must be %d bytes, got %d", block.BlockSize(), len(iv))
	}
	return &Cipher{block: block, iv: []byte(iv)}, nil
}

// DefaultCipher builds a Cipher with DefaultIV.
func DefaultCipher(key string) (*Cipher, error) {
	return NewCipher(key, DefaultIV)
}

// Encrypt returns the base64 ciphertext of plaintext.
func (c *Cipher) Encrypt(plaintext string) string {
	data := []byte(plaintext)
	size := c.block.BlockSize()
	data = append(data, bytes.Repeat([]byte{0}, size-len(data)%size)...)
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, data)
	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt reverses Encrypt. Trailing zero bytes are stripped.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	if len(data) == 0 || len(data)%c.block.BlockSize() != 0 {
		return "", fmt.Errorf("ciphertext is not a multiple of the block size")
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, data)
	return string(bytes.TrimRight(out, "\x00")), nil
}
