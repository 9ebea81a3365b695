package apiclient

import (
	"encoding/json"

	"github.com/robsondrs/erede-go/apierror"
)

// JSONParser decodes the body into T regardless of status code. Endpoints that need to
// distinguish declines or business errors should supply their own parser.
func JSONParser[T any]() ResponseParser[T] {
	return func(body string, statusCode int) (T, error) {
		var v T
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			return v, &apierror.ProtocolError{Op: "parse", StatusCode: statusCode, Err: err}
		}
		return v, nil
	}
}
