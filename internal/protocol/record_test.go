package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordUint16(t *testing.T) {
	r := New(SFadeLimits, "10", " 90 ", "70000", "-1", "abc")

	v, err := r.Uint16(0)
	assert.NoError(t, err)
	assert.Equal(t, uint16(10), v)

	v, err = r.Uint16(1)
	assert.NoError(t, err)
	assert.Equal(t, uint16(90), v)

	for _, i := range []int{2, 3, 4, 5} {
		_, err = r.Uint16(i)
		assert.ErrorIs(t, err, ErrInvalidArgument, "arg %d", i)
	}
}

func TestRecordBool(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"1", true, false},
		{"0", false, false},
		{"true", true, false},
		{"false", false, false},
		{"5", true, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		got, err := New(SPushMode, tt.in).Bool(0)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidArgument, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRecordDoubleAsUint32(t *testing.T) {
	v, err := New(SPushInterval, "20000.7").DoubleAsUint32(0)
	assert.NoError(t, err)
	assert.Equal(t, uint32(20000), v)

	for _, in := range []string{"-3", "NaN", "5e12", "x"} {
		_, err := New(SPushInterval, in).DoubleAsUint32(0)
		assert.ErrorIs(t, err, ErrInvalidArgument, in)
	}
}

func TestOpcodeNames(t *testing.T) {
	assert.Equal(t, "query_status", QStatus.String())
	assert.Equal(t, "reset", SReset.String())
	assert.Equal(t, "opcode_99", Opcode(99).String())
	assert.False(t, Opcode(32).Known())
	assert.True(t, RCalibrate.IsResponse())
	assert.False(t, SCalibrate.IsResponse())
}

func TestStatusDegraded(t *testing.T) {
	assert.False(t, StatusOK.Degraded())
	assert.True(t, StatusNoALS.Degraded())
	assert.True(t, StatusNoSensors.Degraded())
	assert.Equal(t, "NO_CLIMATE", StatusNoClimate.String())
}
