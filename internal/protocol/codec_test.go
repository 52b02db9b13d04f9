package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"no args", New(QStatus), "0;\r\n"},
		{"one arg", New(RStatus, Uint(uint16(StatusOK))), "1,2317;\r\n"},
		{"two args", New(RFadeLimits, "10", "90"), "27,10,90;\r\n"},
		{"escaped", New(RDeviceInfo, "1.0,rc;a/b", "7"), "3,1.0/,rc/;a//b,7;\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Marshal(tt.rec))
		})
	}
}

func TestDecoderNext(t *testing.T) {
	dec := NewDecoder(strings.NewReader("21,3;\r\n  25,10,90;26;"))

	rec, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, New(SLedMode, "3"), rec)

	rec, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, New(SFadeLimits, "10", "90"), rec)

	rec, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, QFadeLimits, rec.Op)
	assert.Empty(t, rec.Args)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoderEscapedSeparatorsSurvive(t *testing.T) {
	in := New(RDeviceInfo, "v1,beta;x/y", "42")
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(in))

	out, err := NewDecoder(&buf).Next()
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderMalformedOpcodeRecovers(t *testing.T) {
	dec := NewDecoder(strings.NewReader("xx,1;22;"))

	_, err := dec.Next()
	assert.ErrorIs(t, err, ErrMalformed)

	rec, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, QLedMode, rec.Op)
}

func TestDecoderTruncatedFrame(t *testing.T) {
	dec := NewDecoder(strings.NewReader("21,3"))
	_, err := dec.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecoderOversizedFrameIsDropped(t *testing.T) {
	long := strings.Repeat("9", maxFrame+10)
	dec := NewDecoder(strings.NewReader("21," + long + ";22;"))

	_, err := dec.Next()
	assert.ErrorIs(t, err, ErrMalformed)

	rec, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, QLedMode, rec.Op)
}

func TestUnmarshal(t *testing.T) {
	recs, err := Unmarshal([]byte("0;bad;22;"))
	assert.ErrorIs(t, err, ErrMalformed)
	require.Len(t, recs, 2)
	assert.Equal(t, QStatus, recs[0].Op)
	assert.Equal(t, QLedMode, recs[1].Op)
}

func TestConnReadRecords(t *testing.T) {
	rw := struct {
		io.Reader
		io.Writer
	}{strings.NewReader("0;x;29;"), io.Discard}
	c := NewConn(rw)

	out := make(chan Record, 4)
	require.NoError(t, c.ReadRecords(context.Background(), out))
	close(out)

	var ops []Opcode
	for rec := range out {
		ops = append(ops, rec.Op)
	}
	assert.Equal(t, []Opcode{QStatus, SCalibrate}, ops)
}

func TestConnSend(t *testing.T) {
	var buf bytes.Buffer
	c := NewConn(struct {
		io.Reader
		io.Writer
	}{strings.NewReader(""), &buf})

	require.NoError(t, c.Send(New(RLedMode, "3")))
	assert.Equal(t, "23,3;\r\n", buf.String())
}

func TestMultiSink(t *testing.T) {
	var a, b Recorder
	failing := SinkFunc(func(Record) error { return errors.New("offline") })

	err := MultiSink(&a, failing, nil, &b).Send(New(RLux, "12"))
	assert.Error(t, err)
	assert.Len(t, a.Records(), 1)
	assert.Len(t, b.Records(), 1)
}
