// Package model provides the data structures shared across the shell packages.
// It defines the parsed command tree, the per-stage execution specification,
// the run state machine and the option contracts used to observe a run.
package model
