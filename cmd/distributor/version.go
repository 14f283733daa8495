package main

var (
	// Version is the version of the binary, set at build time.
	Version string
	// GitCommit is the commit the binary was built from, set at build time.
	GitCommit string
	// BuildDate is the date the binary was built, set at build time.
	BuildDate string
)
