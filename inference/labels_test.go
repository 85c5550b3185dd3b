package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadLabels(t *testing.T) {
	p := writeFile(t, "labels.txt", "0\n 1 \r\nA\nb\n\n\n")

	labels, err := LoadLabels(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "A", "b"}, labels)
}

func TestLoadLabels_Errors(t *testing.T) {
	_, err := LoadLabels(writeFile(t, "empty.txt", "\n\n"))
	assert.ErrorContains(t, err, "empty")

	_, err = LoadLabels(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
