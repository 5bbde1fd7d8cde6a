package quality

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/subscription-runner/internal/dataset"
)

func table(t *testing.T, s string) *dataset.Table {
	t.Helper()
	tbl, err := dataset.Parse(strings.NewReader(s))
	require.NoError(t, err)
	return tbl
}

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr string
	}{
		{
			name: "valid sample",
			csv:  "age,income,subscribed,id\n35,50000,yes,1\n",
		},
		{
			name:    "negative age",
			csv:     "age,income,subscribed,id\n-1,50000,yes,1\n",
			wantErr: "age cannot be negative",
		},
		{
			name:    "negative income",
			csv:     "age,income,subscribed,id\n30,-5,no,1\n",
			wantErr: "income cannot be negative",
		},
		{
			name:    "unknown category",
			csv:     "age,income,subscribed,id\n35,50000,maybe,1\n",
			wantErr: "invalid value \"maybe\"",
		},
		{
			name:    "float age breaks schema",
			csv:     "age,income,subscribed,id\n35.5,50000,yes,1\n",
			wantErr: "expected integer",
		},
		{
			name:    "null income breaks schema",
			csv:     "age,income,subscribed,id\n35,,yes,1\n",
			wantErr: "expected integer",
		},
		{
			name:    "null id",
			csv:     "age,income,subscribed,id\n35,50000,yes,\n",
			wantErr: "null values",
		},
		{
			name:    "duplicate rows",
			csv:     "age,income,subscribed,id\n35,50000,yes,1\n35,50000,yes,1\n",
			wantErr: "duplicate rows",
		},
		{
			name:    "header without rows",
			csv:     "age,income,subscribed,id\n",
			wantErr: "no rows",
		},
		{
			name:    "missing id column",
			csv:     "age,income,subscribed\n35,50000,yes\n",
			wantErr: "expected number of columns",
		},
		{
			name:    "missing subscribed column",
			csv:     "age,income,id,extra\n35,50000,1,x\n",
			wantErr: "schema",
		},
	}

	c := NewChecker()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Run(table(t, tt.csv))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "validation_passed.txt")
	require.NoError(t, WriteSentinel(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, SentinelText, string(data))
}
