package main

import "time"

// Flag structs to decouple cobra from logic for testing.

type WatchFlags struct {
	ConfigPath string
	Foreground bool
	Daemonize  bool
	PIDFile    string
	LogFile    string
}

type CheckFlags struct {
	ConfigPath string
}

type StatusFlags struct {
	ConfigPath string
	// Remote agent connection; when set the status server is queried
	// instead of the local metrics file.
	APIUrl     string
	APITimeout time.Duration
	Insecure   bool
}
