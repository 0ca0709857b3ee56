// Package registry loads the offering catalog and client insight sets from
// fixture files, Notion and Salesforce.
package registry

import (
	"bytes"
	"embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/portfolio-advisor/internal/model"
)

// Format is a fixture file encoding.
type Format string

// Supported fixture formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", eris.Errorf("registry: unsupported fixture extension %q", filepath.Ext(path))
}

//go:embed schemas/*.json
var schemaFS embed.FS

// SchemaError lists every schema violation found in a document.
type SchemaError struct {
	Document string
	Problems []string
}

func (e *SchemaError) Error() string {
	return "registry: invalid " + e.Document + ": " + strings.Join(e.Problems, "; ")
}

// LoadCatalogFile reads an offering catalog from a JSON, YAML or XLSX file.
func LoadCatalogFile(path string) ([]model.Offering, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		return ReadCatalogXLSX(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read catalog fixture")
	}
	return DecodeCatalog(data, format)
}

// LoadInsightsFile reads one or more insight sets from a JSON, YAML or XLSX file.
func LoadInsightsFile(path string) ([]model.ClientInsightSet, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		return ReadInsightsXLSX(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read insights fixture")
	}
	return DecodeInsights(data, format)
}

// DecodeCatalog parses a catalog document: either an array of offerings or
// an object with an "offerings" array. Offerings are not validated here;
// ranking skips the invalid ones.
func DecodeCatalog(data []byte, format Format) ([]model.Offering, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, err
	}
	if err := validateDocument("catalog", doc); err != nil {
		return nil, err
	}
	if obj, ok := doc.(map[string]any); ok {
		doc = obj["offerings"]
	}

	var offerings []model.Offering
	if err := remarshal(doc, &offerings); err != nil {
		return nil, eris.Wrap(err, "registry: decode catalog")
	}
	if offerings == nil {
		offerings = []model.Offering{}
	}
	return offerings, nil
}

// DecodeInsights parses an insights document: a single insight set, an
// array of them, or an object with a "clients" array. Each set is validated.
func DecodeInsights(data []byte, format Format) ([]model.ClientInsightSet, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, err
	}
	if err := validateDocument("insights", doc); err != nil {
		return nil, err
	}

	var sets []model.ClientInsightSet
	switch v := doc.(type) {
	case []any:
		err = remarshal(v, &sets)
	case map[string]any:
		if clients, ok := v["clients"]; ok {
			err = remarshal(clients, &sets)
		} else {
			var one model.ClientInsightSet
			err = remarshal(v, &one)
			sets = []model.ClientInsightSet{one}
		}
	}
	if err != nil {
		return nil, eris.Wrap(err, "registry: decode insights")
	}

	out := make([]model.ClientInsightSet, 0, len(sets))
	for _, s := range sets {
		set, err := model.NewClientInsightSet(s.ClientName, s.Sentiment, normalizeKinds(s.Signals)...)
		if err != nil {
			return nil, eris.Wrap(err, "registry: decode insights")
		}
		set.CapturedAt = s.CapturedAt
		out = append(out, set)
	}
	return out, nil
}

func decodeDocument(data []byte, format Format) (any, error) {
	var doc any
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, eris.Wrap(err, "registry: parse json")
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrap(err, "registry: parse yaml")
		}
	default:
		return nil, eris.Errorf("registry: format %q cannot be decoded from bytes", format)
	}
	if doc == nil {
		return nil, eris.New("registry: empty document")
	}
	return doc, nil
}

func validateDocument(name string, doc any) error {
	schema, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
	if err != nil {
		return eris.Wrapf(err, "registry: load %s schema", name)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return eris.Wrapf(err, "registry: validate %s", name)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &SchemaError{Document: name, Problems: problems}
}

// remarshal converts a generic document into typed structs through their
// JSON tags, so YAML and JSON fixtures share one mapping.
func remarshal(doc any, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func normalizeKinds(signals []model.Signal) []model.Signal {
	out := make([]model.Signal, len(signals))
	for i, s := range signals {
		if s.Kind == "" {
			s.Kind = model.SignalChallenge
		}
		out[i] = s
	}
	return out
}
