// Package fusion implements the multi-modal emotion fusion engine.
//
// Normalize and BlendshapeScorer turn raw producer output into EmotionVectors. Window keeps the
// bounded per-tick history, Compute fuses it at one window size and Analyze at several.
// Everything here is pure and single-owner: callers serialize access to a Window themselves.
package fusion
