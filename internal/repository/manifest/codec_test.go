package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
)

const yamlManifest = `# zere release manifest
name: zere
versions:
  0.1.0:
    - os: darwin
      arch: arm64
      url: https://github.com/umitkavala/zeredata-cli/releases/download/cli-v0.1.0/zere-darwin-arm64
      checksum: ` + zereChecksum + `
    - os: Linux
      arch: x86_64
      url: https://github.com/umitkavala/zeredata-cli/releases/download/cli-v0.1.0/zere-linux-amd64.zst
      checksum: ` + otherChecksum + `
      compression: zstd
`

const tomlManifest = `name = "zere"

[[versions."0.1.0"]]
os = "darwin"
arch = "arm64"
url = "https://github.com/umitkavala/zeredata-cli/releases/download/cli-v0.1.0/zere-darwin-arm64"
checksum = "` + zereChecksum + `"
`

const jsonManifest = `{
  "name": "zere",
  "versions": {
    "0.1.0": [
      {
        "os": "darwin",
        "arch": "arm64",
        "url": "https://github.com/umitkavala/zeredata-cli/releases/download/cli-v0.1.0/zere-darwin-arm64",
        "checksum": "` + zereChecksum + `"
      }
    ]
  }
}`

// TestDecode reads the same manifest from YAML, TOML and JSON.
func TestDecode(t *testing.T) {
	t.Parallel()

	darwin := artifact.NewPlatform("darwin", "arm64")

	for _, data := range []string{yamlManifest, tomlManifest, jsonManifest} {
		m, err := Decode([]byte(data), "")
		require.NoError(t, err)
		require.Equal(t, "zere", m.Name)

		spec, err := m.Resolve("0.1.0", darwin)
		require.NoError(t, err)
		require.Equal(t, zereChecksum, spec.ExpectedChecksum)
	}

	// Aliases in the document are normalized on load.
	m, err := Decode([]byte(yamlManifest), FormatYAML)
	require.NoError(t, err)

	spec, err := m.Resolve("0.1.0", artifact.NewPlatform("linux", "amd64"))
	require.NoError(t, err)
	require.Equal(t, artifact.CompressionZstd, spec.Compression)
}

// TestDecode_Rejects fails schema and semantic validation with ErrInvalidManifest.
func TestDecode_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{
			name: "placeholder checksum",
			data: `versions:
  0.1.0:
    - os: darwin
      arch: arm64
      url: https://example.com/zere
      checksum: REPLACE_WITH_ACTUAL_SHA256
`,
		},
		{
			name: "unknown entry field",
			data: `versions:
  0.1.0:
    - os: darwin
      arch: arm64
      url: https://example.com/zere
      sha256: ` + zereChecksum + `
`,
		},
		{
			name: "checksum is a number",
			data: `{"versions": {"0.1.0": [{"os": "darwin", "arch": "arm64", "url": "https://example.com/zere", "checksum": 42}]}}`,
		},
		{
			name: "no versions",
			data: `name: zere`,
		},
		{
			name: "empty document",
			data: ``,
		},
		{
			name: "broken json",
			data: `{"versions": `,
		},
		{
			name: "unknown compression",
			data: `versions:
  0.1.0:
    - os: darwin
      arch: arm64
      url: https://example.com/zere
      checksum: ` + zereChecksum + `
      compression: rar
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode([]byte(tt.data), "")
			require.ErrorIs(t, err, artifact.ErrInvalidManifest)
		})
	}
}

// TestEncode_Roundtrip decodes what Encode wrote in every format.
func TestEncode_Roundtrip(t *testing.T) {
	t.Parallel()

	original := sampleManifest()

	for _, format := range []Format{FormatYAML, FormatTOML, FormatJSON} {
		data, err := Encode(original, format)
		require.NoError(t, err)
		require.Equal(t, format, SniffFormat(data), string(data))

		decoded, err := Decode(data, format)
		require.NoError(t, err)
		require.Equal(t, original, decoded)
	}
}

// TestFormatDetection picks the format from the path or the content.
func TestFormatDetection(t *testing.T) {
	t.Parallel()

	format, ok := FormatFromPath("https://example.com/releases/zere-manifest.yml?token=1")
	require.True(t, ok)
	require.Equal(t, FormatYAML, format)

	format, ok = FormatFromPath("/tmp/manifest.TOML")
	require.True(t, ok)
	require.Equal(t, FormatTOML, format)

	_, ok = FormatFromPath("manifest")
	require.False(t, ok)

	require.Equal(t, FormatJSON, SniffFormat([]byte(jsonManifest)))
	require.Equal(t, FormatTOML, SniffFormat([]byte(tomlManifest)))
	require.Equal(t, FormatYAML, SniffFormat([]byte(yamlManifest)))

	format, err := ParseFormat("YML")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	_, err = ParseFormat("xml")
	require.ErrorIs(t, err, errUnknownFormat)
}
