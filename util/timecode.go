// Package util - Frame directory loading and mm:ss time codes.
package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrBadTimecode is returned for a time code that is not mm:ss.
var ErrBadTimecode = errors.New("util: time code must be mm:ss")

// ParseTimecode parses an "mm:ss" time code. Minutes may exceed 59.
//
// Arguments:
// - code: The time code, e.g. "01:30".
//
// Returns:
// - time.Duration: The offset from the start of the video.
// - error: ErrBadTimecode.
func ParseTimecode(code string) (time.Duration, error) {
	minutes, seconds, ok := strings.Cut(strings.TrimSpace(code), ":")
	if !ok {
		return 0, errors.Wrapf(ErrBadTimecode, "%q", code)
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 {
		return 0, errors.Wrapf(ErrBadTimecode, "%q minutes", code)
	}
	s, err := strconv.Atoi(seconds)
	if err != nil || s < 0 || s > 59 {
		return 0, errors.Wrapf(ErrBadTimecode, "%q seconds", code)
	}
	return time.Duration(m)*time.Minute + time.Duration(s)*time.Second, nil
}

// FormatTimecode formats a duration as "mm:ss", truncating fractions.
func FormatTimecode(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
