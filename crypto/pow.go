package crypto

import (
	"context"
	"crypto/sha1"
	"errors"
	"strconv"
	"strings"
)

// DigestBits is the width of the proof-of-work digest in bits.
const DigestBits = sha1.Size * 8

// ErrDifficultyOutOfRange is returned when a difficulty cannot be satisfied
// by a DigestBits-wide digest.
var ErrDifficultyOutOfRange = errors.New("difficulty out of range")

// RequiredPrefix returns the all-zero bit string a solution digest must
// start with at the given difficulty.
func RequiredPrefix(difficulty int) string {
	if difficulty <= 0 {
		return ""
	}
	return strings.Repeat("0", difficulty)
}

// HashToBits returns the SHA-1 digest of input as a string of '0' and '1'
// characters, always exactly DigestBits long. Leading zero bits are kept.
func HashToBits(input []byte) string {
	sum := sha1.Sum(input)
	var b strings.Builder
	b.Grow(DigestBits)
	for _, octet := range sum {
		for bit := 7; bit >= 0; bit-- {
			if octet&(1<<bit) != 0 {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
	}
	return b.String()
}

// CheckProofOfWork reports whether response solves the challenge posed by
// token: the first difficulty bits of SHA-1(token‖response) must be zero.
func CheckProofOfWork(token, response string, difficulty int) bool {
	if difficulty < 0 || difficulty > DigestBits {
		return false
	}
	bits := HashToBits([]byte(token + response))
	return bits[:difficulty] == RequiredPrefix(difficulty)
}

// SolveProofOfWork searches for a response satisfying CheckProofOfWork.
// Candidates are decimal counters; the search stops when ctx is done.
func SolveProofOfWork(ctx context.Context, token string, difficulty int) (string, error) {
	if difficulty < 0 || difficulty > DigestBits {
		return "", ErrDifficultyOutOfRange
	}
	buf := make([]byte, 0, len(token)+20)
	buf = append(buf, token...)
	for n := uint64(0); ; n++ {
		if n&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		candidate := strconv.AppendUint(buf, n, 10)
		if leadingZeroBits(candidate) >= difficulty {
			return string(candidate[len(token):]), nil
		}
	}
}

// leadingZeroBits counts the leading zero bits of SHA-1(input). It agrees with
// HashToBits without building the bit string.
func leadingZeroBits(input []byte) int {
	sum := sha1.Sum(input)
	count := 0
	for _, octet := range sum {
		if octet == 0 {
			count += 8
			continue
		}
		for bit := 7; bit >= 0 && octet&(1<<bit) == 0; bit-- {
			count++
		}
		break
	}
	return count
}
