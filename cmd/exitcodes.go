package cmd

// Exit codes for the Matrix Builder CLI surface (spec §6).
const (
	exitSuccess          = 0
	exitConfigError      = 1
	exitDataInsufficient = 2
	exitPersistenceError = 3
)
