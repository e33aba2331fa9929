// Package cache remembers which proximity alerts were last seen in range,
// so a notification fires only when a bus enters the radius.
package cache

import "fmt"

func stateKey(alertID string) string {
	return fmt.Sprintf("proximity:%s:in_range", alertID)
}
