package manifest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
)

// Format is a manifest serialization format.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

var errUnknownFormat = errors.New("unknown manifest format")

// tomlAssignment matches a bare TOML "key = value" line.
var tomlAssignment = regexp.MustCompile(`^[A-Za-z0-9_.\-"']+\s*=`)

// FormatFromPath picks the format by file extension. Query strings and
// fragments of URLs are ignored.
func FormatFromPath(source string) (Format, bool) {
	if parsed, err := url.Parse(source); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		source = parsed.Path
	}

	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	case ".json":
		return FormatJSON, true
	default:
		return "", false
	}
}

// SniffFormat guesses the format from content: a leading brace means JSON, a
// table header or key assignment on the first significant line means TOML,
// anything else is treated as YAML.
func SniffFormat(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		return FormatJSON
	}

	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || line == "---" {
			continue
		}

		if strings.HasPrefix(line, "[") || tomlAssignment.MatchString(line) {
			return FormatTOML
		}

		break
	}

	return FormatYAML
}

// ParseFormat converts a user-provided format name.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatTOML:
		return FormatTOML, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownFormat, name)
	}
}

// Decode parses, schema-checks and validates a manifest. An empty format is
// sniffed from the content. Every failure wraps artifact.ErrInvalidManifest.
func Decode(data []byte, format Format) (*Manifest, error) {
	if format == "" {
		format = SniffFormat(data)
	}

	document, err := decodeDocument(data, format)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", artifact.ErrInvalidManifest, format, err)
	}

	if err := validateSchema(document); err != nil {
		return nil, fmt.Errorf("%w: %w", artifact.ErrInvalidManifest, err)
	}

	m := new(Manifest)

	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, m)
	case FormatTOML:
		err = toml.Unmarshal(data, m)
	case FormatJSON:
		err = json.Unmarshal(data, m)
	default:
		err = fmt.Errorf("%w: %q", errUnknownFormat, format)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", artifact.ErrInvalidManifest, format, err)
	}

	m.Normalize()

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// Encode serializes a manifest in the given format.
func Encode(m *Manifest, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer

		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)

		if err := encoder.Encode(m); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}

		if err := encoder.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}

		return buf.Bytes(), nil
	case FormatTOML:
		data, err := toml.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode toml: %w", err)
		}

		return data, nil
	case FormatJSON:
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}

		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownFormat, format)
	}
}

// decodeDocument decodes into generic values for schema validation.
func decodeDocument(data []byte, format Format) (any, error) {
	var document any

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, err
		}
	case FormatTOML:
		table := make(map[string]any)
		if err := toml.Unmarshal(data, &table); err != nil {
			return nil, err
		}

		document = table
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()

		if err := decoder.Decode(&document); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownFormat, format)
	}

	return jsonValue(document), nil
}

// jsonValue converts decoder output into the value set of encoding/json,
// which is what the schema validator understands.
func jsonValue(value any) any {
	switch v := value.(type) {
	case nil, bool, string, float64, json.Number:
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = jsonValue(item)
		}

		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = jsonValue(item)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = jsonValue(item)
		}

		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = jsonValue(item)
		}

		return out
	case int:
		return json.Number(strconv.Itoa(v))
	case int64:
		return json.Number(strconv.FormatInt(v, 10))
	case uint64:
		return json.Number(strconv.FormatUint(v, 10))
	case float32:
		return float64(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
