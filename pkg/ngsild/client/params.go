package client

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// RequestDecoratorFunc appends query parameters to an outgoing request.
type RequestDecoratorFunc func([]string) []string

func Types(typeNames []string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("type=%s", strings.Join(typeNames, ",")))
	}
}

func IDs(ids []string) RequestDecoratorFunc {
	return func(params []string) []string {
		escaped := make([]string, len(ids))
		for idx, id := range ids {
			escaped[idx] = url.QueryEscape(id)
		}
		return append(params, fmt.Sprintf("id=%s", strings.Join(escaped, ",")))
	}
}

func IDPattern(pattern string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("idPattern=%s", url.QueryEscape(pattern)))
	}
}

func Attributes(attrs []string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("attrs=%s", strings.Join(attrs, ",")))
	}
}

// Query adds an NGSI-LD query expression, such as
// "temperature>20;status==\"open\"".
func Query(q string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("q=%s", url.QueryEscape(q)))
	}
}

func After(timeAt time.Time) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("timerel=after&timeAt=%s", timeAt.UTC().Format(time.RFC3339)))
	}
}

func Before(timeAt time.Time) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("timerel=before&timeAt=%s", timeAt.UTC().Format(time.RFC3339)))
	}
}

func Between(timeAt, endTimeAt time.Time) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(
			params,
			fmt.Sprintf("timerel=between&timeAt=%s&endTimeAt=%s",
				timeAt.UTC().Format(time.RFC3339),
				endTimeAt.UTC().Format(time.RFC3339),
			))
	}
}

func NearPoint(distance int, lat, lon float64) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("georel=near;maxDistance==%d&geometry=Point&coordinates=[%.6f,%.6f]", distance, lon, lat))
	}
}

func Limit(limit int) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("limit=%d", limit))
	}
}

func Offset(offset int) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("offset=%d", offset))
	}
}

// KeyValues requests the simplified entity representation.
func KeyValues() RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, "options=keyValues")
	}
}

// Count asks the broker to include the total result count header.
func Count() RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, "count=true")
	}
}
