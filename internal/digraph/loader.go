package digraph

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Load reads a pipeline definition file and builds the DAG from it.
// If the definition names a dotenv file, its variables are loaded into the
// process environment before the DAG is returned.
func Load(path string) (*DAG, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}

	def, err := decode(data)
	if err != nil {
		return nil, err
	}

	if def.Name == "" {
		def.Name = defaultName(path)
	}

	if def.Dotenv != "" {
		dotenvPath := def.Dotenv
		if !filepath.IsAbs(dotenvPath) {
			dotenvPath = filepath.Join(filepath.Dir(path), dotenvPath)
		}
		if err := godotenv.Load(dotenvPath); err != nil {
			return nil, fmt.Errorf("failed to load dotenv file %q: %w", def.Dotenv, err)
		}
	}

	return build(def)
}

// LoadYAML builds a DAG from in-memory YAML data. The name is used as the
// job name when the definition does not declare one.
func LoadYAML(data []byte, name string) (*DAG, error) {
	def, err := decode(data)
	if err != nil {
		return nil, err
	}
	if def.Name == "" {
		def.Name = name
	}
	return build(def)
}

// decode unmarshals the YAML document into a raw map and then decodes it
// into the typed definition. Duplicate step names are YAML map keys and are
// rejected at this stage.
func decode(data []byte) (*definition, error) {
	var raw map[string]any
	if err := yaml.UnmarshalWithOptions(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline yaml: %w", err)
	}

	def := &definition{}
	md := &mapstructure.Metadata{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:   def,
		Metadata: md,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline definition: %w", err)
	}

	return def, nil
}

// defaultName derives the job name from the file name without extension.
func defaultName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
