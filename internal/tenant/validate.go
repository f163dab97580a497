package tenant

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var schema = mustSchema()

var ErrInvalidConfig = errors.New("invalid company configuration")

// InvalidConfigError lists every schema violation of a rejected document.
type InvalidConfigError struct {
	Problems []string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(e.Problems, "; "))
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func mustSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("tenant schema: %v", err))
	}
	return s
}

// ValidateJSON checks a raw configuration document against the schema.
func ValidateJSON(doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &InvalidConfigError{Problems: []string{err.Error()}}
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return &InvalidConfigError{Problems: errs}
	}
	return nil
}

func Validate(cfg Config) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return ValidateJSON(b)
}
