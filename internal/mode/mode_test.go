package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFlag(t *testing.T) {
	assert.Equal(t, Development, FromFlag(true))
	assert.Equal(t, Packaged, FromFlag(false))
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "development", want: Development},
		{in: "dev", want: Development},
		{in: "packaged", want: Packaged},
		{in: "production", want: Packaged},
		{in: "staging", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "development", Development.String())
	assert.Equal(t, "packaged", Packaged.String())
	assert.Equal(t, "mode(7)", Mode(7).String())
	assert.False(t, Mode(0).Valid())
}
