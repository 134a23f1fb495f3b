package decider

import (
	"errors"
	"fmt"
)

var errUnexpectedReply = errors.New("decider: unexpected script reply shape")

// toInt64 coerces a Lua script reply element (int64 from go-redis, or a
// plain int/float from an alternate store.Store backend) to int64.
func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

// toString coerces a Lua script reply element to a string, handling the
// []byte form go-redis sometimes returns for bulk strings.
func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
