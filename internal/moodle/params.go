package moodle

import (
	"fmt"
	"net/url"
	"strconv"
)

// Params is the parameter bag for a web-service call. Record lists ("users",
// "enrolments", "criteria") are []map[string]interface{}; everything else is a
// scalar or a plain slice.
type Params map[string]interface{}

// ParamEncoder turns a parameter bag into a form body. Two encodings exist
// because some Moodle deployments reject one or the other; call sites try
// them in fixed order, structured first.
type ParamEncoder func(Params) url.Values

// EncodeStructured writes record lists as indexed field groups
// (users[0][username], enrolments[0][roleid], criteria[0][key], ...) and
// everything else as scalars or indexed arrays.
func EncodeStructured(p Params) url.Values {
	v := url.Values{}
	for key, raw := range p {
		if records, ok := raw.([]map[string]interface{}); ok {
			encodeRecords(v, key, records)
			continue
		}
		encodeScalar(v, key, raw)
	}
	return v
}

// EncodeFlat drops the record nesting and writes each field of the first
// record as a top-level scalar. Compatibility fallback for servers that
// reject the structured shape.
func EncodeFlat(p Params) url.Values {
	v := url.Values{}
	for key, raw := range p {
		if records, ok := raw.([]map[string]interface{}); ok {
			if len(records) > 0 {
				for field, val := range records[0] {
					v.Set(field, toString(val))
				}
			}
			continue
		}
		encodeScalar(v, key, raw)
	}
	return v
}

func encodeRecords(v url.Values, prefix string, records []map[string]interface{}) {
	for i, rec := range records {
		for field, val := range rec {
			v.Set(fmt.Sprintf("%s[%d][%s]", prefix, i, field), toString(val))
		}
	}
}

func encodeScalar(v url.Values, key string, raw interface{}) {
	switch val := raw.(type) {
	case []string:
		for i, s := range val {
			v.Set(fmt.Sprintf("%s[%d]", key, i), s)
		}
	case []int:
		for i, n := range val {
			v.Set(fmt.Sprintf("%s[%d]", key, i), strconv.Itoa(n))
		}
	default:
		v.Set(key, toString(raw))
	}
}

func toString(raw interface{}) string {
	switch val := raw.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", raw)
	}
}
