package api

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/xraph/smsrelay"
)

// Request shapes. Field-level rules (ID prefixes, reportable states, content
// length) are enforced by the relay so every problem is reported together.
const (
	reportAttemptsSchema = `{
		"type": "object",
		"required": ["updates"],
		"properties": {
			"updates": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["attempt", "newState"],
					"properties": {
						"attempt": {"type": "string"},
						"newState": {"type": "string"}
					}
				}
			}
		}
	}`

	createMessageSchema = `{
		"type": "object",
		"required": ["orgId", "content"],
		"properties": {
			"orgId": {"type": "string"},
			"content": {"type": "string"}
		}
	}`
)

var (
	reportAttemptsShape = mustCompile("smsrelay://schema/report-attempts", reportAttemptsSchema)
	createMessageShape  = mustCompile("smsrelay://schema/create-message", createMessageSchema)
)

func mustCompile(url, src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("api: parse schema %s: %v", url, err))
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		panic(fmt.Sprintf("api: add schema %s: %v", url, err))
	}
	return c.MustCompile(url)
}

// checkShape validates raw against schema. A mismatch is returned as a
// *smsrelay.ValidationError wrapping sentinel, one problem per failing
// location.
func checkShape(schema *jsonschema.Schema, raw []byte, sentinel error) error {
	verr := &smsrelay.ValidationError{Err: sentinel}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		verr.Add(-1, "body", "must be valid JSON")
		return verr
	}

	err = schema.Validate(inst)
	if err == nil {
		return nil
	}

	var serr *jsonschema.ValidationError
	if !errors.As(err, &serr) {
		return fmt.Errorf("api: validate request: %w", err)
	}
	for _, leaf := range leaves(serr) {
		verr.Add(-1, "/"+strings.Join(leaf.InstanceLocation, "/"), "does not match the expected shape")
	}
	return verr.OrNil()
}

func leaves(e *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(e.Causes) == 0 {
		return []*jsonschema.ValidationError{e}
	}
	var out []*jsonschema.ValidationError
	for _, c := range e.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}
