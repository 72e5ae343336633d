package gear

import (
	"encoding/json"
	"fmt"
)

// toJSONOrFmt renders input as compact JSON; if it is not JSON-
// serializable it falls back to fmt.Sprint so Process never fails merely
// because a caller handed it an exotic Go value.
func toJSONOrFmt(input any) string {
	b, err := json.Marshal(input)
	if err != nil {
		return fmt.Sprint(input)
	}
	return string(b)
}
