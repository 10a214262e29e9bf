package apihttp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"spotrelay/internal/errs"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxJSONBody = 64 << 10

// 请求体结构校验：只检查字段类型与取值范围，业务规则（三选一、精度）仍由 order 包负责。
const adjustSchema = `{
  "type": "object",
  "required": ["symbol"],
  "properties": {
    "symbol":     {"type": "string", "minLength": 1},
    "quantity":   {"$ref": "#/$defs/amount"},
    "usdAmount":  {"$ref": "#/$defs/amount"},
    "price":      {"$ref": "#/$defs/amount"},
    "closeRatio": {"type": "number", "minimum": 0, "maximum": 1}
  },
  "$defs": {
    "amount": {
      "oneOf": [
        {"type": "number"},
        {"type": "string", "pattern": "^-?[0-9]*\\.?[0-9]+([eE][-+]?[0-9]+)?$"}
      ]
    }
  }
}`

const placeSchema = `{
  "type": "object",
  "allOf": [{"$ref": "adjust.json"}],
  "required": ["side"],
  "properties": {
    "side":             {"type": "string", "pattern": "^(?i)\\s*(buy|sell)\\s*$"},
    "type":             {"type": "string"},
    "timeInForce":      {"type": "string"},
    "newClientOrderId": {"type": "string", "maxLength": 36},
    "test":             {"type": "boolean"}
  }
}`

type bodySchemas struct {
	adjust *jsonschema.Schema
	place  *jsonschema.Schema
}

func compileBodySchemas() (*bodySchemas, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("adjust.json", strings.NewReader(adjustSchema)); err != nil {
		return nil, err
	}
	if err := compiler.AddResource("place.json", strings.NewReader(placeSchema)); err != nil {
		return nil, err
	}
	adjust, err := compiler.Compile("adjust.json")
	if err != nil {
		return nil, fmt.Errorf("compile adjust schema: %w", err)
	}
	place, err := compiler.Compile("place.json")
	if err != nil {
		return nil, fmt.Errorf("compile place schema: %w", err)
	}
	return &bodySchemas{adjust: adjust, place: place}, nil
}

func (s *bodySchemas) adjustSchema() *jsonschema.Schema {
	if s == nil {
		return nil
	}
	return s.adjust
}

func (s *bodySchemas) placeSchema() *jsonschema.Schema {
	if s == nil {
		return nil
	}
	return s.place
}

// bindValidated 读取 JSON 请求体，按 schema 校验后解码到 out。
func bindValidated(c *gin.Context, schema *jsonschema.Schema, out any) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxJSONBody))
	if err != nil {
		return errs.Invalid("read body: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return errs.Invalid("malformed json: %v", err)
	}
	if schema != nil {
		if err := schema.Validate(doc); err != nil {
			return errs.Invalid("%s", schemaMessage(err))
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Invalid("decode body: %v", err)
	}
	return nil
}

func schemaMessage(err error) string {
	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		leaf := verr
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return fmt.Sprintf("invalid request at %s: %s", loc, leaf.Message)
	}
	return err.Error()
}
