package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.HTTP.Addr)
	assert.Equal(t, "0.0.0.0", cfg.SFTP.Host)
	assert.Equal(t, 2222, cfg.SFTP.Port)
	assert.Equal(t, "./sftp_root_dir", cfg.SFTP.RootDir)
	assert.Equal(t, "sftpgate.db", cfg.Store.Path)
	assert.False(t, cfg.Debug)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
http:
  addr: 127.0.0.1:8080
sftp:
  host: 127.0.0.1
  port: 2200
  root_dir: /srv/sftp
store:
  path: /var/lib/sftpgate/events.db
debug: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	assert.Equal(t, "127.0.0.1", cfg.SFTP.Host)
	assert.Equal(t, 2200, cfg.SFTP.Port)
	assert.Equal(t, "/srv/sftp", cfg.SFTP.RootDir)
	assert.Equal(t, "/var/lib/sftpgate/events.db", cfg.Store.Path)
	assert.True(t, cfg.Debug)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sftp:\n  port: 2022\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2022, cfg.SFTP.Port)
	assert.Equal(t, "0.0.0.0:3000", cfg.HTTP.Addr)
	assert.Equal(t, "./sftp_root_dir", cfg.SFTP.RootDir)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SFTPGATE_SFTP_PORT", "2201")
	t.Setenv("SFTPGATE_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("SFTPGATE_DEBUG", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2201, cfg.SFTP.Port)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.True(t, cfg.Debug)
}

func TestMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			HTTP:  HTTPConfig{Addr: "0.0.0.0:3000"},
			SFTP:  SFTPConfig{Host: "0.0.0.0", Port: 2222, RootDir: "./sftp_root_dir"},
			Store: StoreConfig{Path: "sftpgate.db"},
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.HTTP.Addr = "no-port-here"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.SFTP.Host = "not valid!"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.SFTP.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.SFTP.RootDir = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Store.Path = ""
	assert.Error(t, cfg.Validate())
}

func TestBadYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sftp: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
