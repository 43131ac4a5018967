package protocol

import (
	"regexp"
	"slices"
	"time"
	"unicode/utf8"
)

var channelPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-:.]+$`)

// ValidChannel reports whether name is an acceptable channel name.
func ValidChannel(name string) bool {
	return channelPattern.MatchString(name)
}

// MessageLength returns the length of s in UTF-16 code units, which is how
// browser clients compute messageSize.
func MessageLength(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func validateChannels(channels []string, maxChannels int) error {
	if len(channels) > maxChannels {
		return rejectf(ErrTooManyChannels, "%d channels, at most %d allowed", len(channels), maxChannels)
	}
	if len(channels) == 0 {
		return rejectf(ErrInvalidChannel, "no channels")
	}
	for _, ch := range channels {
		if !ValidChannel(ch) {
			return rejectf(ErrInvalidChannel, "channel %q", ch)
		}
	}
	return nil
}

// checkTiming enforces the redemption window of a token issued at issuedAt
// (unix milliseconds): at least delay and at most maxAge must separate it
// from now, in either direction.
func checkTiming(now time.Time, issuedAt int64, delay int64, maxAge time.Duration) error {
	elapsed := now.UnixMilli() - issuedAt
	if elapsed < 0 {
		elapsed = -elapsed
	}
	if elapsed < delay {
		return rejectf(ErrTokenTooSoon, "%dms elapsed, %dms required", elapsed, delay)
	}
	if elapsed > maxAge.Milliseconds() {
		return rejectf(ErrTokenExpired, "%dms elapsed, at most %dms allowed", elapsed, maxAge.Milliseconds())
	}
	return nil
}

func channelsEqual(a, b []string) bool {
	return slices.Equal(a, b)
}
