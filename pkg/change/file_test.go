package change

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castingclouds/atomic-go/pkg/ids"
)

func TestWriteFileReadFileRoundTrip(t *testing.T) {
	c := sampleChange(t)
	c.Unhashed = []byte(`{"attribution":"example"}`)

	var buf bytes.Buffer
	require.NoError(t, WriteFile(&buf, c))

	got, err := ReadFile(&buf)
	require.NoError(t, err)
	require.Equal(t, c.Hashed, got.Hashed)
	require.Equal(t, c.Unhashed, got.Unhashed)
	require.Equal(t, c.Contents, got.Contents)
}

func TestReadFileRejectsInconsistentOffsetsHeader(t *testing.T) {
	c := sampleChange(t)
	var buf bytes.Buffer
	require.NoError(t, WriteFile(&buf, c))

	raw := buf.Bytes()
	// Flip a byte inside the total-size field so the file is internally
	// inconsistent and ReadFile must reject it outright.
	tampered := append([]byte(nil), raw...)
	tampered[55] ^= 0xFF

	_, err := ReadFile(bytes.NewReader(tampered))
	require.Error(t, err)
}

func TestWriteFileProducesSmallerOutputThanRawEncodingForCompressibleContent(t *testing.T) {
	c := sampleChange(t)
	c.Contents = bytes.Repeat([]byte("aaaaaaaaaa"), 1000)
	c.Hashed.ContentsHash = ids.HashBytes(c.Contents)

	var buf bytes.Buffer
	require.NoError(t, WriteFile(&buf, c))
	require.Less(t, buf.Len(), len(c.Contents))
}
