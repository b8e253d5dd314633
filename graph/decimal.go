package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/99designs/gqlgen/graphql"
	"github.com/shopspring/decimal"
)

func MarshalDecimal(d decimal.Decimal) graphql.Marshaler {
	return graphql.WriterFunc(func(w io.Writer) {
		w.Write([]byte(d.String()))
	})
}

// UnmarshalDecimal accepts numbers and strings such as "1,250.5 kW".
// Thousands separators must be well placed.
func UnmarshalDecimal(i interface{}) (decimal.Decimal, error) {
	switch v := i.(type) {
	case string:
		s := strings.TrimSpace(v)
		for _, unit := range []string{"kWh", "kwh", "kW", "kw"} {
			s = strings.TrimSpace(strings.TrimSuffix(s, unit))
		}
		if s == "" {
			return decimal.Zero, fmt.Errorf("invalid value")
		}
		return utils.ParseDecimal(s)
	case json.Number:
		return decimal.NewFromString(v.String())
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("invalid value")
	}
}
