package bits

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadBits(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xff, 0x0f}))
	require.Equal(t, uint32(3), r.Read(2))   // 11
	require.Equal(t, uint32(7), r.Read(3))   // 111
	require.Equal(t, uint32(28), r.Read(5))  // 11100
	require.Equal(t, uint32(1), r.Read(3))   // 001
	require.Equal(t, uint32(7), r.Read(3))   // 111
	require.NoError(t, r.AccError())
	require.Equal(t, 2, r.NrBytesRead())
	require.Equal(t, 16, r.NrBitsRead())
}

func TestReadSignedBits(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xff, 0x0c}))
	require.Equal(t, int32(-1), r.ReadSigned(2))
	require.Equal(t, int32(-1), r.ReadSigned(3))
	require.Equal(t, int32(-4), r.ReadSigned(5))
	require.Equal(t, int32(1), r.ReadSigned(3))
	require.Equal(t, int32(-4), r.ReadSigned(3))
	require.NoError(t, r.AccError())
}

func TestReadStickyError(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xff}))
	require.Equal(t, uint32(0xff), r.Read(8))
	require.Equal(t, uint32(0), r.Read(8))
	err := r.AccError()
	require.Error(t, err)
	// every later read is a no-op returning zero
	require.Equal(t, uint32(0), r.Read(1))
	require.False(t, r.ReadFlag())
	require.Equal(t, err, r.AccError())
}

func TestReadRemainingBytes(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xab, 0xcd, 0xef}))
	require.Equal(t, uint32(0xab), r.Read(8))
	require.Equal(t, []byte{0xcd, 0xef}, r.ReadRemainingBytes())
	require.NoError(t, r.AccError())

	r = NewReader(bytes.NewReader([]byte{0xab, 0xcd}))
	r.Read(3)
	require.Nil(t, r.ReadRemainingBytes())
	require.Error(t, r.AccError())
}

func TestMask(t *testing.T) {
	require.Equal(t, uint32(0xff), Mask(8))
	require.Equal(t, uint32(0x0f), Mask(4))
	require.Equal(t, ^uint32(0), Mask(32))
}

func TestExpGolomb(t *testing.T) {
	cases := []struct {
		in   []byte
		want []uint
	}{
		{[]byte{0x80}, []uint{0}},                // 1
		{[]byte{0x40}, []uint{1}},                // 010
		{[]byte{0x60}, []uint{2}},                // 011
		{[]byte{0x20}, []uint{3}},                // 00100
		{[]byte{0x38}, []uint{6}},                // 00111
		{[]byte{0xb3, 0xa0}, []uint{0, 2, 6, 1}}, // 1 011 00111 010
	}
	for _, c := range cases {
		r := NewReader(bytes.NewReader(c.in))
		for _, want := range c.want {
			require.Equal(t, want, r.ReadExpGolomb())
		}
		require.NoError(t, r.AccError())
	}
}

func TestExpGolombBitLength(t *testing.T) {
	// ue(v) consumes exactly 2*floor(log2(v+1)) + 1 bits
	for v := uint(0); v < 70; v++ {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		w.WriteExpGolomb(v)
		w.Flush()
		require.NoError(t, w.AccError())
		r := NewReader(bytes.NewReader(buf.Bytes()))
		require.Equal(t, v, r.ReadExpGolomb())
		nrBits := 1
		for log := v + 1; log > 1; log >>= 1 {
			nrBits += 2
		}
		require.Equal(t, nrBits, r.NrBitsRead(), "ue(%d)", v)
	}
}

func TestSignedGolombRoundTrip(t *testing.T) {
	for v := -33; v <= 33; v++ {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		w.WriteSignedGolomb(v)
		w.Flush()
		require.NoError(t, w.AccError())
		r := NewReader(bytes.NewReader(buf.Bytes()))
		require.Equal(t, v, r.ReadSignedGolomb(), "se(%d)", v)
		require.NoError(t, r.AccError())
	}
}

func TestEBSPReaderSkipsEmulationBytes(t *testing.T) {
	// 00 00 03 01 unescapes to 00 00 01
	r := NewEBSPReader(bytes.NewReader([]byte{0x00, 0x00, 0x03, 0x01}))
	require.Equal(t, uint32(0), r.Read(8))
	require.Equal(t, uint32(0), r.Read(8))
	require.Equal(t, uint32(1), r.Read(8))
	require.NoError(t, r.AccError())
	require.Equal(t, 4, r.NrBytesRead())
}

func TestEBSPReaderZeroCounterReset(t *testing.T) {
	// the zero counter resets after an escape, so 00 00 03 00 00 03 00
	// unescapes to 00 00 00 00 00
	in := []byte{0x00, 0x00, 0x03, 0x00, 0x00, 0x03, 0x00}
	r := NewEBSPReader(bytes.NewReader(in))
	for i := 0; i < 5; i++ {
		require.Equal(t, uint32(0), r.Read(8))
	}
	require.NoError(t, r.AccError())

	// a non-zero byte resets the counter and a later escape is still seen
	r = NewEBSPReader(bytes.NewReader([]byte{0x00, 0x01, 0x00, 0x00, 0x03, 0x02}))
	want := []uint32{0x00, 0x01, 0x00, 0x00, 0x02}
	for _, b := range want {
		require.Equal(t, b, r.Read(8))
	}
	require.NoError(t, r.AccError())
}

func TestWriter(t *testing.T) {
	cases := []struct {
		inputs []uint32
		size   int
		want   []byte
	}{
		{[]uint32{255}, 8, []byte{0xff}},
		{[]uint32{15, 15}, 4, []byte{0xff}},
		{[]uint32{3, 3, 3, 3}, 2, []byte{0xff}},
		{[]uint32{1, 1, 1, 1, 1, 1, 1, 1}, 1, []byte{0xff}},
		{[]uint32{15, 15, 15}, 4, []byte{0xff, 0xf0}},
		{[]uint32{3, 3, 3, 3, 3, 3}, 2, []byte{0xff, 0xf0}},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		for _, in := range c.inputs {
			w.Write(in, c.size)
		}
		w.Flush()
		require.NoError(t, w.AccError())
		require.Equal(t, c.want, buf.Bytes())
	}
}
