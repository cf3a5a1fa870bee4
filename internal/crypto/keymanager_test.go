package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	require.Equal(t, testKeyHex, got)
}

func TestDecryptWithWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	require.Error(t, err)
}

func TestEncryptRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	require.Error(t, err)

	_, err = EncryptKey("zz", "hunter2")
	require.Error(t, err)

	_, err = EncryptKey("abcd", "hunter2") // not 32 bytes
	require.Error(t, err)
}

func TestLoadKeyPrefersRawKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: testKeyHex})
	require.NoError(t, err)
	require.Equal(t, testKeyHex, got)
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	require.Equal(t, testKeyHex, got)
}

func TestLoadKeyWithoutAnySource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	require.Error(t, err)
}

func TestNewSignerDerivesAddress(t *testing.T) {
	s, err := NewSigner("0x"+testKeyHex, 1)
	require.NoError(t, err)
	require.NotZero(t, s.Address())
	require.Equal(t, int64(1), s.ChainID().Int64())

	_, err = NewSigner("nothex", 1)
	require.Error(t, err)
}
