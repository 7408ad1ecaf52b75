package nabu

import (
	"crypto/cipher"
	"crypto/des"
)

// Cloud paks are distributed DES-CBC encrypted with a key and IV that
// are fixed for the whole cycle 1 library and baked into every adapter.
var (
	cloudKey = []byte{0x6E, 0x58, 0x61, 0x32, 0x62, 0x79, 0x75, 0x7A}
	cloudIV  = []byte{0x0C, 0x15, 0x2B, 0x11, 0x39, 0x23, 0x43, 0x1B}
)

// DecryptPak reverses the cloud distribution transform: DES-CBC with
// the fixed key/IV, then PKCS#7 unpadding at the DES block size. It is
// a pure function of its input and never returns garbage on malformed
// ciphertext: truncated input, input that is not a whole number of
// blocks, and bad padding all fail with a decrypt error.
func DecryptPak(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, NewError(ErrDecrypt, "empty ciphertext")
	}
	if len(blob)%des.BlockSize != 0 {
		return nil, NewError(ErrDecrypt, "ciphertext is not a whole number of blocks")
	}

	block, err := des.NewCipher(cloudKey)
	if err != nil {
		return nil, WrapError(ErrDecrypt, "bad cipher key", -1, err)
	}

	plain := make([]byte, len(blob))
	cipher.NewCBCDecrypter(block, cloudIV).CryptBlocks(plain, blob)

	return unpad(plain, des.BlockSize)
}

// unpad removes PKCS#7 padding.
func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, NewError(ErrDecrypt, "empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, NewError(ErrDecrypt, "bad padding length")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, NewError(ErrDecrypt, "bad padding bytes")
		}
	}
	return data[:len(data)-n], nil
}
