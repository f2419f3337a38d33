package aur

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/aurgrab/pkg/errors"
)

const searchResponse = `{
  "version": 5,
  "type": "search",
  "resultcount": 2,
  "results": [
    {
      "ID": 1102,
      "Name": "foo-bar",
      "PackageBaseID": 77,
      "PackageBase": "foo-bar",
      "Version": "2.0-1",
      "Description": "Bar flavoured foo",
      "URL": "https://example.org/foo-bar",
      "URLPath": "/cgit/aur.git/snapshot/foo-bar.tar.gz",
      "NumVotes": 3,
      "Popularity": 0.25,
      "OutOfDate": null,
      "Maintainer": "alice",
      "FirstSubmitted": 1500000000,
      "LastModified": 1600000000
    },
    {
      "ID": 1101,
      "Name": "foo",
      "PackageBase": "foo",
      "Version": "1.0-1",
      "Description": "The foo (with parens) package",
      "NumVotes": 42,
      "OutOfDate": 1650000000,
      "Maintainer": null,
      "Unknown": {"nested": ["ignored", 1]},
      "License": ["MIT", "Apache"],
      "Depends": ["glibc", "zlib>=1.2"],
      "MakeDepends": ["cmake"],
      "OptDepends": ["python: scripting support"],
      "Keywords": ["foo", "bar"]
    }
  ]
}`

func TestDecodeSortsByName(t *testing.T) {
	pkgs, err := Decode(strings.NewReader(searchResponse))
	require.NoError(t, err)
	require.Len(t, pkgs, 2)

	assert.Equal(t, "foo", pkgs[0].Name)
	assert.Equal(t, "foo-bar", pkgs[1].Name)
}

func TestDecodeFields(t *testing.T) {
	pkgs, err := Decode(strings.NewReader(searchResponse))
	require.NoError(t, err)

	bar := pkgs[1]
	assert.Equal(t, 1102, bar.ID)
	assert.Equal(t, 77, bar.PackageBaseID)
	assert.Equal(t, "2.0-1", bar.Version)
	assert.Equal(t, "Bar flavoured foo", bar.Description)
	assert.Equal(t, "https://example.org/foo-bar", bar.URL)
	assert.Equal(t, "/cgit/aur.git/snapshot/foo-bar.tar.gz", bar.URLPath)
	assert.Equal(t, 3, bar.NumVotes)
	assert.InDelta(t, 0.25, bar.Popularity, 1e-9)
	assert.False(t, bar.OutOfDate)
	assert.Equal(t, "alice", bar.Maintainer)
	assert.Equal(t, int64(1500000000), bar.FirstSubmitted)
	assert.Equal(t, int64(1600000000), bar.LastModified)

	foo := pkgs[0]
	assert.True(t, foo.OutOfDate)
	assert.Equal(t, int64(1650000000), foo.OutOfDateSince)
	assert.Empty(t, foo.Maintainer)
	assert.Equal(t, []string{"MIT", "Apache"}, foo.License)
	assert.Equal(t, []string{"glibc", "zlib>=1.2"}, foo.Depends)
	assert.Equal(t, []string{"cmake"}, foo.MakeDepends)
	assert.Equal(t, []string{"python: scripting support"}, foo.OptDepends)
	assert.Equal(t, []string{"foo", "bar"}, foo.Keywords)
}

func TestDecodeLegacyStringFields(t *testing.T) {
	body := `{"type":"info","results":{"ID":"99","Name":"cower","Version":"17-2",` +
		`"CategoryID":"16","License":"MIT","NumVotes":"1000","OutOfDate":"1"}}`

	pkgs, err := Decode(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, pkgs, 1)

	p := pkgs[0]
	assert.Equal(t, 99, p.ID)
	assert.Equal(t, 16, p.CategoryID)
	assert.Equal(t, 1000, p.NumVotes)
	assert.Equal(t, []string{"MIT"}, p.License)
	assert.True(t, p.OutOfDate)
}

func TestDecodeOutOfDateMarker(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"string one", `"1"`, true},
		{"string zero", `"0"`, false},
		{"null", `null`, false},
		{"timestamp", `1650000000`, true},
		{"zero number", `0`, false},
		{"bool", `true`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"type":"info","results":[{"Name":"x","OutOfDate":` + tt.value + `}]}`
			pkgs, err := Decode(strings.NewReader(body))
			require.NoError(t, err)
			require.Len(t, pkgs, 1)
			assert.Equal(t, tt.want, pkgs[0].OutOfDate)
		})
	}
}

func TestDecodeErrorEnvelope(t *testing.T) {
	body := `{"version":5,"type":"error","resultcount":0,"results":[],"error":"Too many package results."}`

	pkgs, err := Decode(strings.NewReader(body))
	assert.Nil(t, pkgs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeServiceError))
	assert.False(t, errors.Is(err, errors.ErrCodeMalformed))
	assert.Contains(t, err.Error(), "Too many package results.")
}

func TestDecodeErrorEnvelopeDropsRecords(t *testing.T) {
	body := `{"results":[{"Name":"a"}],"type":"error","error":"nope"}`

	pkgs, err := Decode(strings.NewReader(body))
	assert.Nil(t, pkgs)
	assert.True(t, errors.Is(err, errors.ErrCodeServiceError))
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ``},
		{"garbage", `<html>502 Bad Gateway</html>`},
		{"truncated", `{"type":"search","results":[{"Name":"foo"`},
		{"top-level array", `[{"Name":"foo"}]`},
		{"scalar", `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkgs, err := Decode(strings.NewReader(tt.body))
			assert.Nil(t, pkgs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeMalformed), "got %v", err)
		})
	}
}

func TestDecodeNoResults(t *testing.T) {
	pkgs, err := Decode(strings.NewReader(`{"version":5,"type":"search","resultcount":0,"results":[]}`))
	require.NoError(t, err)
	assert.Empty(t, pkgs)
}

// chunkReader hands out its data in fixed-size pieces.
type chunkReader struct {
	data []byte
	size int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := min(r.size, len(p), len(r.data))
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestDecodeChunkBoundaryInsensitive(t *testing.T) {
	want, err := Decode(strings.NewReader(searchResponse))
	require.NoError(t, err)

	t.Run("one byte at a time", func(t *testing.T) {
		got, err := Decode(iotest.OneByteReader(strings.NewReader(searchResponse)))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	for _, size := range []int{2, 3, 7, 64, 1000} {
		t.Run("chunks", func(t *testing.T) {
			got, err := Decode(&chunkReader{data: []byte(searchResponse), size: size})
			require.NoError(t, err)
			assert.Equal(t, want, got, "chunk size %d", size)
		})
	}

	t.Run("half-reader", func(t *testing.T) {
		got, err := Decode(iotest.HalfReader(bytes.NewReader([]byte(searchResponse))))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}
