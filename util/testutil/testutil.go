// Package testutil has small helpers for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// JS renders its argument as JSON or as a string indicating an error.
func JS(x interface{}) string {
	bs, err := json.Marshal(&x)
	if err != nil {
		log.Printf("warning: testutil.JS error %s for %#v", err, x)
		return fmt.Sprintf("%#v", x)
	}
	return string(bs)
}

// Lines joins its arguments with newlines and terminates the last
// one, which is how line input usually arrives.
func Lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}
