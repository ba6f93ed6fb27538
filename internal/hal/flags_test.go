package hal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperatingFlags(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    OperatingFlags
		wantErr bool
	}{
		{"空列表", nil, 0, false},
		{"单个标志", []string{"confirmed-uplink"}, FlagConfirmedUplink, false},
		{"组合且忽略大小写", []string{"Unattended", " deep-sleep-test "}, FlagUnattended | FlagDeepSleepTest, false},
		{"未知标志", []string{"turbo"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOperatingFlags(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlagStore(t *testing.T) {
	s := NewFlagStore(FlagUnattended)
	assert.True(t, s.OperatingFlags().Has(FlagUnattended))
	assert.False(t, s.OperatingFlags().Has(FlagUnattended|FlagConfirmedUplink))

	s.Set(FlagConfirmedUplink)
	assert.True(t, s.OperatingFlags().Has(FlagConfirmedUplink))
	assert.False(t, s.OperatingFlags().Has(FlagUnattended))
}
