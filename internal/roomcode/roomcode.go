// Package roomcode generates and parses human-shareable room codes.
package roomcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/BioHazard786/Huddle/internal/protocol"
)

// ErrInvalidCode is returned for input that does not contain a usable code.
var ErrInvalidCode = errors.New("invalid room code")

// Generate creates a random, memorable room code made of two words from
// different pools (e.g., "OTTER-RAMEN"). Codes never exceed
// protocol.MaxRoomCodeLength.
func Generate() (string, error) {
	return generate(randomIndex)
}

func generate(intn func(int) (int, error)) (string, error) {
	for {
		first, err := intn(len(pools))
		if err != nil {
			return "", err
		}
		second, err := intn(len(pools) - 1)
		if err != nil {
			return "", err
		}
		if second >= first {
			second++
		}

		w1, err := pick(intn, pools[first])
		if err != nil {
			return "", err
		}
		w2, err := pick(intn, pools[second])
		if err != nil {
			return "", err
		}

		code := strings.ToUpper(w1 + "-" + w2)
		if len(code) <= protocol.MaxRoomCodeLength {
			return code, nil
		}
	}
}

func pick(intn func(int) (int, error), words []string) (string, error) {
	i, err := intn(len(words))
	if err != nil {
		return "", err
	}
	return words[i], nil
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generate room code: %w", err)
	}
	return int(n.Int64()), nil
}

// Parse extracts a normalized room code from either a bare code or a room
// link of the form https://host/r/<code>.
func Parse(input string) (string, error) {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidCode, err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) != 2 || parts[0] != "r" {
			return "", fmt.Errorf("%w: link %q has no /r/<code> path", ErrInvalidCode, input)
		}
		input = parts[1]
	}

	code, ok := protocol.NormalizeRoomCode(input)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, input)
	}
	return code, nil
}
