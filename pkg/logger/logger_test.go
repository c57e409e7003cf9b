package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "console defaults", cfg: Config{}},
		{name: "json debug", cfg: Config{Level: "debug", Format: "json"}},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log.Named("test"))
		})
	}
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skyview.log")

	log, err := New(Config{Level: "info", Format: "console", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Named("file").With(String("session", "abc")).Info("hello", Int("n", 1))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"session":"abc"`)
}

func TestNop(t *testing.T) {
	log := NewNop()
	log.Debug("ignored")
	log.Error("ignored", Error(assert.AnError))
	assert.NoError(t, log.Sync())
}
