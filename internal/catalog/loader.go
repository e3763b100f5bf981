package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"toolshed/pkg/models"
)

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the decoder from the file extension; anything that is not
// YAML is read as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseError is returned when the catalog file exists but is not a valid
// tool document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid catalog %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FailureRecorder is told why a lenient load fell back to an empty catalog.
type FailureRecorder interface {
	CatalogLoadFailed(reason string)
}

type Loader struct {
	Path    string
	logger  *zap.Logger
	metrics FailureRecorder
}

func NewLoader(path string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{Path: path, logger: logger}
}

func (l *Loader) WithMetrics(m FailureRecorder) *Loader {
	l.metrics = m
	return l
}

// Read loads the catalog from disk. The file is read on every call, so edits
// show up without a restart.
func (l *Loader) Read() ([]models.Tool, error) {
	data, err := l.readFile()
	if err != nil {
		return nil, err
	}

	tools, err := Decode(data, FormatFor(l.Path))
	if err != nil {
		return nil, &ParseError{Path: l.Path, Err: err}
	}
	return tools, nil
}

// ReadDocuments returns every tool exactly as written in the file, as JSON.
// Fields unknown to models.Tool are kept and absent ones are not filled in.
// A file that Read rejects is rejected here too.
func (l *Loader) ReadDocuments() ([]json.RawMessage, error) {
	data, err := l.readFile()
	if err != nil {
		return nil, err
	}

	format := FormatFor(l.Path)
	if _, err := Decode(data, format); err != nil {
		return nil, &ParseError{Path: l.Path, Err: err}
	}
	docs, err := DecodeDocuments(data, format)
	if err != nil {
		return nil, &ParseError{Path: l.Path, Err: err}
	}
	return docs, nil
}

func (l *Loader) readFile() ([]byte, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return data, nil
}

// Load is Read for the serving path: any failure is logged and an empty,
// non-nil catalog is returned.
func (l *Loader) Load() []models.Tool {
	tools, err := l.Read()
	if err != nil {
		l.fallback(err)
		return []models.Tool{}
	}
	return tools
}

// LoadDocuments is the lenient ReadDocuments.
func (l *Loader) LoadDocuments() []json.RawMessage {
	docs, err := l.ReadDocuments()
	if err != nil {
		l.fallback(err)
		return []json.RawMessage{}
	}
	return docs
}

func (l *Loader) fallback(err error) {
	var parseErr *ParseError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.logger.Warn("catalog file not found", zap.String("path", l.Path))
		l.recordFailure("missing")
	case errors.As(err, &parseErr):
		l.logger.Warn("catalog file is not valid", zap.String("path", l.Path), zap.Error(parseErr.Err))
		l.recordFailure("invalid")
	default:
		l.logger.Warn("catalog file unreadable", zap.String("path", l.Path), zap.Error(err))
		l.recordFailure("read")
	}
}

func (l *Loader) recordFailure(reason string) {
	if l.metrics != nil {
		l.metrics.CatalogLoadFailed(reason)
	}
}

// Decode accepts either one tool object or an array of tools.
func Decode(data []byte, format Format) ([]models.Tool, error) {
	switch format {
	case FormatYAML:
		return decodeYAML(data)
	default:
		return decodeJSON(data)
	}
}

func decodeJSON(data []byte) ([]models.Tool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty document")
	}

	if trimmed[0] == '{' {
		var one models.Tool
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, err
		}
		return []models.Tool{one}, nil
	}

	var many []models.Tool
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return nil, err
	}
	if many == nil {
		return nil, errors.New("document is not a tool or a list of tools")
	}
	return many, nil
}

func decodeYAML(data []byte) ([]models.Tool, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New("empty document")
	}

	doc := root.Content[0]
	switch doc.Kind {
	case yaml.MappingNode:
		var one models.Tool
		if err := doc.Decode(&one); err != nil {
			return nil, err
		}
		return []models.Tool{one}, nil
	case yaml.SequenceNode:
		many := make([]models.Tool, 0, len(doc.Content))
		if err := doc.Decode(&many); err != nil {
			return nil, err
		}
		return many, nil
	default:
		return nil, fmt.Errorf("line %d: document is not a tool or a list of tools", doc.Line)
	}
}

// DecodeDocuments splits a catalog into one JSON document per tool without
// going through models.Tool. YAML mappings come out with sorted keys.
func DecodeDocuments(data []byte, format Format) ([]json.RawMessage, error) {
	if format == FormatYAML {
		return yamlDocuments(data)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var one json.RawMessage
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, err
		}
		return []json.RawMessage{one}, nil
	}

	var many []json.RawMessage
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return nil, err
	}
	if many == nil {
		return nil, errors.New("document is not a tool or a list of tools")
	}
	return many, nil
}

func yamlDocuments(data []byte) ([]json.RawMessage, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var items []any
	switch v := doc.(type) {
	case map[string]any:
		items = []any{v}
	case []any:
		items = v
	default:
		return nil, errors.New("document is not a tool or a list of tools")
	}

	out := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("tool %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}
