// File: api/priority.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ThreadPriority is the scheduling priority applied to worker OS threads.
type ThreadPriority int

const (
	PriorityLowest ThreadPriority = iota - 2
	PriorityBelowNormal
	PriorityNormal
	PriorityAboveNormal
	PriorityHighest
)

func (p ThreadPriority) String() string {
	switch p {
	case PriorityLowest:
		return "lowest"
	case PriorityBelowNormal:
		return "below_normal"
	case PriorityNormal:
		return "normal"
	case PriorityAboveNormal:
		return "above_normal"
	case PriorityHighest:
		return "highest"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p is one of the defined levels.
func (p ThreadPriority) Valid() bool {
	return p >= PriorityLowest && p <= PriorityHighest
}

// ParseThreadPriority accepts the String() form, case-insensitively, with
// either '_' or '-' as separator.
func ParseThreadPriority(s string) (ThreadPriority, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for p := PriorityLowest; p <= PriorityHighest; p++ {
		if p.String() == norm {
			return p, nil
		}
	}
	if norm == "" {
		return PriorityNormal, nil
	}
	return PriorityNormal, errors.Wrapf(ErrInvalidArgument, "unknown thread priority %q", s)
}
