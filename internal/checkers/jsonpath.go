// Package checkers holds quicktest checkers shared by tests.
package checkers

import (
	"encoding/json"
	"fmt"

	qt "github.com/frankban/quicktest"
	"github.com/yalp/jsonpath"
)

type jsonPathChecker struct {
	path string
}

// JSONPathEquals checks that the JSON document given as a string or []byte
// holds the wanted value at path. JSON numbers compare as float64.
//
//	c.Assert(text, checkers.JSONPathEquals("$.total_items"), float64(3))
func JSONPathEquals(path string) qt.Checker {
	return &jsonPathChecker{path: path}
}

func (c *jsonPathChecker) ArgNames() []string {
	return []string{"got", "want"}
}

func (c *jsonPathChecker) Check(got any, args []any, note func(key string, value any)) error {
	var data []byte
	switch v := got.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return qt.BadCheckf("first argument is not a string or []byte")
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	val, err := jsonpath.Read(doc, c.path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", c.path, err)
	}
	note("path", c.path)
	return qt.DeepEquals.Check(val, args, note)
}
