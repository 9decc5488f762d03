// Package analysis computes frequency-domain summaries of trajectories.
// Adaptive runs are sampled unevenly, so components are first resampled
// onto a uniform grid.
package analysis
