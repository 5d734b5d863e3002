// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/jsonc"
)

// SchemaJSON returns the JSON schema for config.json.
func SchemaJSON() string {
	return configSchemaJSON
}

// ExampleConfigJSON returns a minimal example config derived from the schema.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

// normalizeConfigJSON strips comments and trailing commas, then rejects
// unknown keys and mistyped values before the struct decode.
func normalizeConfigJSON(data []byte) ([]byte, error) {
	stripped := jsonc.ToJSON(data)
	var raw map[string]interface{}
	if err := json.Unmarshal(stripped, &raw); err != nil {
		return nil, err
	}
	if err := validateConfigMap(raw, ""); err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

func validateConfigMap(raw map[string]interface{}, prefix string) error {
	allowed := map[string]func(interface{}) error{
		"listen":   func(v interface{}) error { return validateString(v, prefix+"listen") },
		"endpoint": func(v interface{}) error { return validateString(v, prefix+"endpoint") },
		"token":    func(v interface{}) error { return validateString(v, prefix+"token") },
		"home_dir": func(v interface{}) error { return validateString(v, prefix+"home_dir") },
		"base_dir": func(v interface{}) error { return validateString(v, prefix+"base_dir") },
		"apps_dir": func(v interface{}) error { return validateString(v, prefix+"apps_dir") },
		"logs_dir": func(v interface{}) error { return validateString(v, prefix+"logs_dir") },
		"protected_paths": func(v interface{}) error {
			return validateStringArray(v, prefix+"protected_paths")
		},
		"max_request_bytes": func(v interface{}) error {
			return validateNumber(v, prefix+"max_request_bytes")
		},
		"request_timeout_seconds": func(v interface{}) error {
			return validateNumber(v, prefix+"request_timeout_seconds")
		},
		"rate_limit": func(v interface{}) error {
			return validateRateLimit(v, prefix+"rate_limit.")
		},
		"log_level": func(v interface{}) error { return validateString(v, prefix+"log_level") },
	}
	return validateSection(raw, allowed, prefix)
}

func validateRateLimit(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", prefix[:len(prefix)-1])
	}
	allowed := map[string]func(interface{}) error{
		"per_minute": func(v interface{}) error { return validateNumber(v, prefix+"per_minute") },
		"burst":      func(v interface{}) error { return validateNumber(v, prefix+"burst") },
	}
	return validateSection(section, allowed, prefix)
}

func validateSection(section map[string]interface{}, allowed map[string]func(interface{}) error, prefix string) error {
	keys := make([]string, 0, len(section))
	for key := range section {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		validator, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := validator(section[key]); err != nil {
			return err
		}
	}
	return nil
}

func validateString(value interface{}, name string) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%s must be a string", name)
	}
	return nil
}

func validateNumber(value interface{}, name string) error {
	if _, ok := value.(float64); !ok {
		return fmt.Errorf("%s must be a number", name)
	}
	return nil
}

func validateStringArray(value interface{}, name string) error {
	list, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("%s must be an array of strings", name)
	}
	for _, item := range list {
		if _, ok := item.(string); !ok {
			return fmt.Errorf("%s must be an array of strings", name)
		}
	}
	return nil
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "homefs config",
  "type": "object",
  "required": ["token"],
  "additionalProperties": false,
  "properties": {
    "listen": { "type": "string", "default": "127.0.0.1:8765" },
    "endpoint": { "type": "string", "default": "/rpc" },
    "token": { "type": "string", "minLength": 16 },
    "home_dir": { "type": "string" },
    "base_dir": { "type": "string" },
    "apps_dir": { "type": "string" },
    "logs_dir": { "type": "string" },
    "protected_paths": { "type": "array", "items": { "type": "string" } },
    "max_request_bytes": { "type": "number", "default": 8388608 },
    "request_timeout_seconds": { "type": "number", "default": 60 },
    "rate_limit": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "per_minute": { "type": "number", "default": 120 },
        "burst": { "type": "number", "default": 30 }
      }
    },
    "log_level": {
      "type": "string",
      "enum": ["trace", "debug", "info", "warn", "error"],
      "default": "info"
    }
  }
}`

const exampleConfigJSON = `{
  // Shared secret for the Authorization: Bearer header.
  "token": "change-me-to-a-long-random-string",
  "listen": "127.0.0.1:8765",
  "home_dir": "/home/agent",
  "base_dir": "~/work",
  "protected_paths": ["~/.ssh", "~/.gnupg"],
  "rate_limit": { "per_minute": 120, "burst": 30 },
}`
