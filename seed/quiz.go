package seed

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"slices"
	"strings"

	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// Quiz asks the user to repeat a few words of a freshly generated phrase.
// Positions are zero based.
type Quiz struct {
	expected map[int]string
}

// NewQuiz picks n distinct positions of words using r as the randomness source.
// A nil r uses crypto/rand.
func NewQuiz(words []string, n int, r io.Reader) (*Quiz, error) {
	if n <= 0 || n > len(words) {
		return nil, fmt.Errorf("%w: cannot ask %d of %d words", interfaces.ErrMalformedInput, n, len(words))
	}
	if r == nil {
		r = rand.Reader
	}

	positions := make([]int, len(words))
	for i := range positions {
		positions[i] = i
	}
	for i := 0; i < n; i++ {
		j, err := rand.Int(r, big.NewInt(int64(len(positions)-i)))
		if err != nil {
			return nil, fmt.Errorf("could not pick quiz position: %w", err)
		}
		k := i + int(j.Int64())
		positions[i], positions[k] = positions[k], positions[i]
	}

	q := &Quiz{expected: make(map[int]string, n)}
	for _, p := range positions[:n] {
		q.expected[p] = strings.ToLower(words[p])
	}
	return q, nil
}

// Positions returns the asked positions in ascending order.
func (q *Quiz) Positions() []int {
	positions := make([]int, 0, len(q.expected))
	for p := range q.expected {
		positions = append(positions, p)
	}
	slices.Sort(positions)
	return positions
}

// Check reports whether every asked position is answered correctly.
func (q *Quiz) Check(answers map[int]string) bool {
	for p, word := range q.expected {
		if strings.ToLower(strings.TrimSpace(answers[p])) != word {
			return false
		}
	}
	return true
}
