package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/llm"
)

// Parse decodes the model's JSON object. Models wrap JSON in prose or code
// fences often enough that the object is cut from the first '{' to the last '}'.
// Numbers may arrive as integral floats or numeric strings; fractions, booleans
// and values beyond float precision are malformed, as is a missing intent.
func Parse(content string) (domain.ExtractedIntent, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return domain.Unclear(), fmt.Errorf("%w: no JSON object in %q", llm.ErrMalformedOutput, truncate(content))
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return domain.Unclear(), fmt.Errorf("%w: %v", llm.ErrMalformedOutput, err)
	}

	var out domain.ExtractedIntent
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: strictInt,
		Result:     &out,
		MatchName: func(mapKey, fieldName string) bool {
			return squash(mapKey) == squash(fieldName)
		},
	})
	if err != nil {
		return domain.Unclear(), err
	}
	if err := dec.Decode(raw); err != nil {
		return domain.Unclear(), fmt.Errorf("%w: %v", llm.ErrMalformedOutput, err)
	}
	if out.Intent == "" {
		return domain.Unclear(), fmt.Errorf("%w: missing intent", llm.ErrMalformedOutput)
	}

	out.Intent = domain.ParseIntent(string(out.Intent))
	return out, nil
}

// MaxQuantity is the largest quantity a single BUY may carry.
const MaxQuantity = 1000

// maxExactFloat is the largest magnitude a float64 holds without losing integers.
const maxExactFloat = 1 << 53

var errNotInteger = errors.New("not an integer")

// strictInt converts JSON numbers and numeric strings into int fields only when
// the value is a whole number. Anything else bound for an int is rejected.
func strictInt(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Int {
		return data, nil
	}
	switch v := data.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) > maxExactFloat {
			return nil, fmt.Errorf("%w: %v", errNotInteger, v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errNotInteger, truncate(v))
		}
		return n, nil
	case int:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %T", errNotInteger, data)
	}
}

// Validate downgrades a BUY without a usable item or quantity to UNCLEAR.
// Quantities above MaxQuantity are not usable.
func Validate(e domain.ExtractedIntent) domain.ExtractedIntent {
	if e.Intent == domain.IntentBuy && (e.ItemID == nil || e.Quantity == nil || *e.Quantity <= 0 || *e.Quantity > MaxQuantity) {
		e.Intent = domain.IntentUnclear
	}
	return e
}

// squash folds "item_id", "itemId" and "ItemID" together.
func squash(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

func truncate(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
