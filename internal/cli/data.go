package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// assembleData merges template data for the render command. Files apply in
// order, --var pairs win over files, and the environment sources go in under
// the "env" key.
func assembleData(files []string, vars []string, withEnv bool, envFiles []string) (map[string]any, error) {
	data := make(map[string]any)

	for _, path := range files {
		loaded, err := loadDataFile(path)
		if err != nil {
			return nil, err
		}
		for key, value := range loaded {
			data[key] = value
		}
	}

	parsed, err := parseVars(vars)
	if err != nil {
		return nil, err
	}
	for key, value := range parsed {
		data[key] = value
	}

	environ, err := environData(withEnv, envFiles)
	if err != nil {
		return nil, err
	}
	if environ != nil {
		data["env"] = environ
	}

	return data, nil
}

// loadDataFile parses a YAML or JSON file into a map. JSON is picked by
// extension; everything else goes through the YAML parser, which accepts
// JSON documents anyway.
func loadDataFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file %q: %w", path, err)
	}

	out := map[string]any{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("parse data file %q: %w", path, err)
		}
		return out, nil
	}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse data file %q: %w", path, err)
	}
	return out, nil
}

// parseVars converts key=value pairs into a data map. Values that read as
// integers, floats, or booleans keep their type; everything else stays a
// string.
func parseVars(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q, want key=value", pair)
		}
		out[key] = coerceScalar(value)
	}
	return out, nil
}

func coerceScalar(value string) any {
	trimmed := strings.TrimSpace(value)
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}

// environData builds the env map exposed to templates. Dotenv files layer
// over the process environment, and either source alone enables the map.
func environData(withEnv bool, envFiles []string) (map[string]any, error) {
	if !withEnv && len(envFiles) == 0 {
		return nil, nil
	}

	out := make(map[string]any)
	if withEnv {
		for _, kv := range os.Environ() {
			if key, value, ok := strings.Cut(kv, "="); ok {
				out[key] = value
			}
		}
	}
	for _, path := range envFiles {
		vars, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("read env file %q: %w", path, err)
		}
		for key, value := range vars {
			out[key] = value
		}
	}
	return out, nil
}
