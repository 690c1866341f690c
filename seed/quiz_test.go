package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quizWords = []string{"legal", "winner", "thank", "year", "wave", "sausage",
	"worth", "useful", "legal", "winner", "thank", "yellow"}

func TestQuizPositions(t *testing.T) {
	q, err := NewQuiz(quizWords, 4, nil)
	require.NoError(t, err)

	positions := q.Positions()
	require.Len(t, positions, 4)
	seen := map[int]bool{}
	for i, p := range positions {
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, len(quizWords))
		assert.False(t, seen[p])
		seen[p] = true
		if i > 0 {
			assert.Greater(t, p, positions[i-1])
		}
	}
}

func TestQuizCheck(t *testing.T) {
	q, err := NewQuiz(quizWords, 3, nil)
	require.NoError(t, err)

	answers := map[int]string{}
	for _, p := range q.Positions() {
		answers[p] = " " + quizWords[p] + " "
	}
	assert.True(t, q.Check(answers))

	for _, p := range q.Positions() {
		wrong := map[int]string{}
		for k, v := range answers {
			wrong[k] = v
		}
		wrong[p] = "zoo"
		assert.False(t, q.Check(wrong))
	}

	assert.False(t, q.Check(nil))
}

func TestQuizAllWords(t *testing.T) {
	q, err := NewQuiz(quizWords, len(quizWords), nil)
	require.NoError(t, err)
	assert.Len(t, q.Positions(), len(quizWords))
}

func TestQuizRejectsBadCount(t *testing.T) {
	_, err := NewQuiz(quizWords, 0, nil)
	assert.Error(t, err)
	_, err = NewQuiz(quizWords, len(quizWords)+1, nil)
	assert.Error(t, err)
}
