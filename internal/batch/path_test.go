package batch

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RMahshie/vthlab/pkg/models"
)

func itoa(n int) string     { return strconv.Itoa(n) }
func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

func TestDescribe(t *testing.T) {
	tests := []struct {
		path string
		want FileInfo
	}{
		{
			path: "data/chip3/295K/pmos/2.txt",
			want: FileInfo{Polarity: models.PMOS, DeviceIndex: 2, Temperature: "295K", Chip: "chip3"},
		},
		{
			path: "data/chip1/77K/NMOS/4.txt",
			want: FileInfo{Polarity: models.NMOS, DeviceIndex: 4, Temperature: "77K", Chip: "chip1"},
		},
		{
			path: "pmos/sweep.txt",
			want: FileInfo{Polarity: models.PMOS},
		},
		{
			path: "misc/1.txt",
			want: FileInfo{Polarity: models.NMOS, DeviceIndex: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			tt.want.Path = tt.path
			assert.Equal(t, tt.want, Describe(tt.path))
		})
	}
}

func TestInferPolarity_SegmentOnly(t *testing.T) {
	assert.Equal(t, models.NMOS, InferPolarity("data/pmosfet/1.txt"))
	assert.Equal(t, models.PMOS, InferPolarity(`C:\data\PMOS\1.txt`))
}

func TestIsDeviceFile(t *testing.T) {
	assert.True(t, isDeviceFile("a/nmos/1.txt"))
	assert.True(t, isDeviceFile("a/pmos/4.txt"))
	assert.False(t, isDeviceFile("a/nmos/5.txt"))
	assert.False(t, isDeviceFile("a/other/1.txt"))
}
