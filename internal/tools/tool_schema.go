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

package tools

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/567-labs/instructor-go/pkg/instructor"
)

// argumentSchema returns the JSON schema advertised for request type T.
// Properties and descriptions come from the json and jsonschema tags; the
// top-level required list comes from validate tags so optional fields are
// not reported as mandatory. Panics on types the generator rejects.
func argumentSchema[T any]() map[string]interface{} {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	params, err := structSchema(t)
	if err != nil {
		panic(fmt.Sprintf("argument schema for %s: %v", t, err))
	}
	return params
}

func structSchema(t reflect.Type) (map[string]interface{}, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s is not a struct", t)
	}
	schema, err := instructor.NewSchema(t)
	if err != nil {
		return nil, err
	}

	var params map[string]interface{}
	for _, fn := range schema.Functions {
		if fn.Name == t.Name() {
			raw, err := json.Marshal(fn.Parameters)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, err
			}
			break
		}
	}
	if params == nil {
		return nil, fmt.Errorf("no schema definition for %s", t.Name())
	}

	required := requiredFields(t)
	if len(required) == 0 {
		delete(params, "required")
	} else {
		params["required"] = required
	}
	return params, nil
}

// requiredFields lists the JSON names of fields tagged validate:"required".
func requiredFields(t reflect.Type) []string {
	var names []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		for _, rule := range strings.Split(field.Tag.Get("validate"), ",") {
			if rule == "required" {
				names = append(names, name)
				break
			}
		}
	}
	return names
}
