package validators

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddr(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidateAddr("127.0.0.1:3000"))
	assert.True(t, ValidateAddr("0.0.0.0:2222"))
	assert.True(t, ValidateAddr("example.com:22"))
	assert.True(t, ValidateAddr("[::1]:8080"))

	assert.False(t, ValidateAddr("127.0.0.1"))
	assert.False(t, ValidateAddr("127.0.0.1:0"))
	assert.False(t, ValidateAddr(":3000"))
	assert.False(t, ValidateAddr(""))
}

func TestValidateHost(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidateHost("127.0.0.1"))
	assert.True(t, ValidateHost("::1"))
	assert.True(t, ValidateHost("localhost"))
	assert.True(t, ValidateHost("sftp.example.com"))
	assert.True(t, ValidateHost("my-host"))

	assert.False(t, ValidateHost(""))
	assert.False(t, ValidateHost("-leading.dash"))
	assert.False(t, ValidateHost("under_score"))
}

func TestValidatePort(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidatePort("22"))
	assert.True(t, ValidatePort("65535"))
	assert.True(t, ValidatePort(2222))

	assert.False(t, ValidatePort("0"))
	assert.False(t, ValidatePort("65536"))
	assert.False(t, ValidatePort("abc"))
	assert.False(t, ValidatePort(0))
	assert.False(t, ValidatePort(3.14))
}

func TestValidateDirectoryExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	assert.True(t, ValidateDirectoryExists(dir))
	assert.False(t, ValidateDirectoryExists(file))
	assert.False(t, ValidateDirectoryExists(filepath.Join(dir, "missing")))
}

func TestValidateFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	assert.True(t, ValidateFileExists(file))
	assert.False(t, ValidateFileExists(dir))
	assert.False(t, ValidateFileExists(filepath.Join(dir, "missing")))
}
