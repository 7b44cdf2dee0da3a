// Package textutil provides the text-similarity primitives used by the
// scene matcher: a character-level sequence similarity ratio, Jaccard set
// overlap, and keyword tokenization.
package textutil
