package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKnownTerms(t *testing.T) {
	tests := []struct {
		name     string
		path     func(t *testing.T) string
		want     []string
		wantSize int
		wantErr  bool
	}{
		{
			name: "embedded list",
			path: func(t *testing.T) string {
				return ""
			},
			wantSize: 558,
		},
		{
			name: "file skips comments and blank lines",
			path: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "terms.txt")
				require.NoError(t, os.WriteFile(path, []byte("# custom\nhello\n\n  break the ice  \nhelp\n"), 0644))
				return path
			},
			want: []string{"hello", "break the ice", "help"},
		},
		{
			name: "missing file",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.txt")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadKnownTerms(tt.path(t))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want != nil {
				assert.Equal(t, tt.want, got)
				return
			}
			assert.Len(t, got, tt.wantSize)
			assert.Contains(t, got, "hello")
			assert.Contains(t, got, "owl")
		})
	}
}
