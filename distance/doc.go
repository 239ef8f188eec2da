// Package distance provides metric-specific scoring for equal-length float32
// vectors, plus the single authority for result ordering.
//
// Scores are not comparable across metrics: Cosine, DotProduct and Jaccard
// rank higher scores as better, while Euclidean and Hamming rank lower scores
// as better. Always order results through SortResults (or Metric.Less) rather
// than comparing raw scores.
package distance
