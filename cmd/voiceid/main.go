// Command voiceid enrols children's voices and identifies who is speaking.
//
// Usage:
//
//	voiceid [flags] <command> [args]
//
// Commands:
//
//	enroll    - Store a reference sample for a speaker
//	identify  - Identify the speaker of an utterance
//	list      - List enrolled profiles
//	stats     - Show enrolment statistics
//	forget    - Remove one speaker's profile
//	reset     - Remove all voice data
//	listen    - Process utterances from stdin continuously
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrWong99/voiceid/cmd/voiceid/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voiceid: %v\n", err)
		os.Exit(1)
	}
}
