// Package monitor validates confirmation requests against a JSON schema
// before any business check runs. Malformed payloads are rejected at the
// boundary with a precise list of violations.
package monitor

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// confirmRequestSchema is the contract of POST /api/payments/confirm: the
// order identity, the echoed amount, and the payment key issued by the
// external service's redirect.
const confirmRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "ConfirmationRequest",
  "type": "object",
  "required": ["orderId", "amount", "paymentKey"],
  "additionalProperties": false,
  "properties": {
    "orderId":    { "type": "string", "minLength": 1 },
    "amount":     { "type": "integer", "minimum": 1 },
    "paymentKey": { "type": "string", "minLength": 1 }
  }
}`

// ContractMonitor validates incoming request bodies against a JSON schema.
type ContractMonitor struct {
	schema *gojsonschema.Schema
}

// NewConfirmRequestMonitor creates a ContractMonitor for the built-in
// confirmation request schema.
func NewConfirmRequestMonitor() (*ContractMonitor, error) {
	return NewContractMonitor(confirmRequestSchema)
}

// NewContractMonitor compiles an arbitrary schema document.
func NewContractMonitor(schemaJSON string) (*ContractMonitor, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("monitor: error compiling schema: %w", err)
	}
	return &ContractMonitor{schema: schema}, nil
}

// Validate checks the request body against the schema. It returns true if
// valid, or false and the list of violations.
func (cm *ContractMonitor) Validate(requestBody []byte) (bool, []string, error) {
	result, err := cm.schema.Validate(gojsonschema.NewBytesLoader(requestBody))
	if err != nil {
		return false, nil, fmt.Errorf("monitor: error during validation: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}
	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return false, violations, nil
}

// FormatErrors joins validation violations into a single message.
func FormatErrors(violations []string) string {
	if len(violations) == 0 {
		return ""
	}
	return "Validation errors: " + strings.Join(violations, "; ")
}
