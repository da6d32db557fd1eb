package core

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// UnmarshalJSON is a custom JSON unmarshaller
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Operation(s)
	switch *o {
	case OperationCreate, OperationRead, OperationUpdate, OperationDelete, OperationList:
		return nil
	default:
		return fmt.Errorf("%s is not valid Operation", s)
	}
}

// OperationForMethod returns the operation an HTTP method performs on an entity type.
// A GET without a record identifier is a list, with a record identifier it is a read.
// The second return value is false for methods the gateway does not dispatch.
func OperationForMethod(method string, withID bool) (Operation, bool) {
	switch strings.ToUpper(method) {
	case http.MethodGet:
		if withID {
			return OperationRead, true
		}
		return OperationList, true
	case http.MethodPost:
		return OperationCreate, true
	case http.MethodPut:
		return OperationUpdate, true
	case http.MethodDelete:
		return OperationDelete, true
	}
	return "", false
}
