// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

type termVector map[string]float64

// Normalize folds case and collapses whitespace and trailing punctuation so
// trivially different prompts share a key.
func Normalize(s string) string {
	s = cases.Fold().String(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

// vectorize builds a term-frequency vector over letter/digit tokens.
func vectorize(normalized string) termVector {
	v := make(termVector)
	for _, tok := range strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		v[tok]++
	}
	return v
}

// cosine returns the cosine similarity of two vectors in [0, 1].
func cosine(a, b termVector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for k, x := range a {
		na += x * x
		if y, ok := b[k]; ok {
			dot += x * y
		}
	}
	for _, y := range b {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Similarity scores two prompts the way the cache does.
func Similarity(a, b string) float64 {
	return cosine(vectorize(Normalize(a)), vectorize(Normalize(b)))
}
