package iocli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promptIO(answers ...string) *IOMock {
	i := 0
	return &IOMock{
		ReadPasswordFunc: func(string) (string, error) {
			if i >= len(answers) {
				return "", errors.New("no input")
			}
			i++
			return answers[i-1], nil
		},
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passphrase")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadPassphrase(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		file    string
		prompt  []string
		want    string
		wantErr bool
	}{
		{name: "env wins over file", env: "from env", file: "from file\n", want: "from env"},
		{name: "file is trimmed", file: "  from file\n", want: "from file"},
		{name: "empty file", file: "\n", wantErr: true},
		{name: "prompt", prompt: []string{"typed"}, want: "typed"},
		{name: "empty prompt", prompt: []string{""}, wantErr: true},
		{name: "prompt error", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(PassphraseEnv, tt.env)
			file := ""
			if tt.file != "" {
				file = writeFile(t, tt.file)
			}

			got, err := ReadPassphrase(promptIO(tt.prompt...), file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadPassphrase_MissingFile(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	_, err := ReadPassphrase(promptIO(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "failed to read passphrase file")
}

func TestReadNewPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")

	got, err := ReadNewPassphrase(promptIO("secret phrase", "secret phrase"), "")
	require.NoError(t, err)
	assert.Equal(t, "secret phrase", got)

	_, err = ReadNewPassphrase(promptIO("secret phrase", "other phrase"), "")
	assert.ErrorContains(t, err, "do not match")

	// из файла подтверждение не запрашивается
	io := promptIO()
	got, err = ReadNewPassphrase(io, writeFile(t, "file phrase"))
	require.NoError(t, err)
	assert.Equal(t, "file phrase", got)
	assert.Empty(t, io.ReadPasswordCalls())
}
