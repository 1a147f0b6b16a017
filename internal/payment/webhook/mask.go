package webhook

import (
	"encoding/json"
	"strings"
)

func maskPayload(raw []byte) []byte {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return []byte("{}")
	}
	maskMap(obj)
	masked, err := json.Marshal(obj)
	if err != nil {
		return []byte("{}")
	}
	return masked
}

func maskMap(m map[string]any) {
	for k, v := range m {
		switch strings.ToLower(k) {
		case "card", "billing_details", "shipping_details", "payment_method_details", "customer_details":
			m[k] = "***"
		default:
			maskValue(v)
		}
	}
}

func maskValue(v any) {
	switch val := v.(type) {
	case map[string]any:
		maskMap(val)
	case []any:
		for _, item := range val {
			maskValue(item)
		}
	}
}
