package tls

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfig_SystemRootsWithoutCA(t *testing.T) {
	cfg, err := ClientConfig("", "", "")

	require.NoError(t, err)
	assert.Nil(t, cfg.RootCAs)
	assert.Empty(t, cfg.Certificates)
}

func TestLoadCAPool_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	_, err := LoadCAPool(path)

	assert.ErrorContains(t, err, "failed to parse CA certificate")
}

func TestLoadCAPool_MissingFile(t *testing.T) {
	_, err := LoadCAPool(filepath.Join(t.TempDir(), "missing.pem"))

	assert.ErrorContains(t, err, "failed to read CA certificate")
}
