/*
Copyright © 2025 gsd contributors
*/
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/gsdhq/gsd/pkg/exitcode"
)

// confirm asks a y/N question on stderr and reads one line from stdin. An
// interrupt while waiting exits with code 130 before any filesystem change.
// Non-interactive callers pass assumeYes to skip the prompt entirely.
func confirm(question string, assumeYes bool) bool {
	if assumeYes {
		return true
	}

	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt)
	defer signal.Stop(interrupted)

	answered := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			answered <- ""
			return
		}
		answered <- line
	}()

	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)

	select {
	case <-interrupted:
		fmt.Fprintln(os.Stderr)
		os.Exit(exitcode.Interrupted)
		return false
	case line := <-answered:
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
