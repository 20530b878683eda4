// Package matcher decides whether a catalog search result confidently matches a free-text track name.
//
// Each candidate is reduced to a composite string (track name followed by every artist name) and scored against the
// query with a distance in [0,1], where 0 means identical after normalization and 1 means nothing in common.
// The lowest score wins and is accepted when it does not exceed the threshold.
//
// The default [Scorer] takes the smaller of two normalized Levenshtein distances: one over the normalized strings
// and one over their alphabetically sorted tokens, so "Imagine Dragons Believer" and "Believer Imagine Dragons"
// score 0.
package matcher
