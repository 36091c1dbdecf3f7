package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// span is one tensor's region of the data section.
type span struct {
	Name   string
	Offset int64
	Size   int64
}

// validateOffsets checks for overlapping tensor regions and out-of-bounds access.
func validateOffsets(spans []span, dataSize int64) error {
	if len(spans) > MaxTensorCount {
		return &ValidationError{
			Err:     ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(spans), MaxTensorCount),
		}
	}

	sorted := make([]span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Err:     ErrNegativeOffset,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Offset > dataSize || t.Size > dataSize-t.Offset {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Err:     ErrOffsetOverlap,
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateTensorName rejects names that could escape a directory when
// tensors are written out one per file.
func ValidateTensorName(name string) error {
	var details string
	switch {
	case name == "":
		details = "empty"
	case len(name) > MaxTensorNameLen:
		details = fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen)
	case strings.HasPrefix(name, "__"):
		details = "names starting with __ are reserved"
	case strings.Contains(name, ".."):
		details = "contains '..'"
	case strings.ContainsAny(name, "/\\"):
		details = "contains path separator (/ or \\)"
	case strings.Contains(name, "\x00"):
		details = "contains null byte"
	default:
		return nil
	}
	return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: details}
}
