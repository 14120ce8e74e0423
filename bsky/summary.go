package main

import "bitbucket.org/Davydov/bsky/skyline"

// RunSummary is storing bsky run summary information.
type RunSummary struct {
	// Version stores bsky version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// NThreads is the number of processes used.
	NThreads int `json:"nThreads"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`

	// Command is the tool which was run.
	Command string `json:"command"`
	// Samples is the number of analysed samples.
	Samples int `json:"samples"`
	// Resumed is the number of samples read from the checkpoint.
	Resumed int `json:"resumed,omitempty"`
	// Interrupted is true if the run was stopped by a signal.
	Interrupted bool `json:"interrupted,omitempty"`

	// Tally counts samples with a change (support and increase).
	Tally *skyline.Tally `json:"tally,omitempty"`
	// Proportion is the fraction of samples with a change.
	Proportion float64 `json:"proportion,omitempty"`
	// IncreaseDate summarizes the dates of the first increase.
	IncreaseDate *skyline.Summary `json:"increaseDate,omitempty"`
	// Band is the per-window median and 95% interval (windows).
	Band []skyline.Summary `json:"band,omitempty"`
}
