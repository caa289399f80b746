package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	require.NoError(t, os.WriteFile(keyFile, []byte("  from-file \n"), 0o600))
	emptyFile := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(emptyFile, []byte("\n"), 0o600))

	original := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		if key == "GEMINI_API_KEY" {
			return " from-env ", true
		}
		return "", false
	}
	t.Cleanup(func() { lookupEnv = original })

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr string
	}{
		{name: "file wins", src: Source{File: keyFile, Value: "inline", Env: "GEMINI_API_KEY"}, want: "from-file"},
		{name: "inline before env", src: Source{Value: " inline ", Env: "GEMINI_API_KEY"}, want: "inline"},
		{name: "env fallback", src: Source{Env: "GEMINI_API_KEY"}, want: "from-env"},
		{name: "empty file", src: Source{Name: "gemini api key", File: emptyFile}, wantErr: "is empty"},
		{name: "missing file", src: Source{File: filepath.Join(dir, "nope")}, wantErr: "reading secret"},
		{name: "nothing configured", src: Source{Name: "gemini api key", Env: "UNSET"}, wantErr: "gemini api key: secret is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLoadNotConfiguredIsSentinel(t *testing.T) {
	_, err := Load(Source{})
	require.ErrorIs(t, err, ErrNotConfigured)
}
