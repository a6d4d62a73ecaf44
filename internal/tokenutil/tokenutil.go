// Package tokenutil estimates the token cost of text for budget
// accounting. It uses the model's tiktoken encoding when one is known and
// falls back to a characters/4 heuristic otherwise, so assembly never fails
// on an unrecognized model name.
package tokenutil

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

type Estimator struct {
	model string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewEstimator(model string) *Estimator {
	return &Estimator{model: model}
}

// Estimate returns the approximate token cost of text, plus one for the
// per-message overhead of the chat format.
func (e *Estimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	e.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(e.model)
		if err == nil {
			e.enc = enc
		}
	})
	if e.enc != nil {
		return len(e.enc.Encode(text, nil, nil)) + 1
	}
	return heuristic(text) + 1
}

// heuristic approximates one token per four characters, rounding up.
func heuristic(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
