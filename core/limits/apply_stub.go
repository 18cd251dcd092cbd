//go:build !linux

package limits

import "fmt"

func Apply(l Limits) error {
	return fmt.Errorf("resource limits are only supported on Linux")
}
