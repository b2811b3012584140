// Copyright 2018 The Kura Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
)

// errUsage is returned by dispatch for malformed invocations; Process maps
// it to os.Exit(2).
var errUsage = errors.New("usage error")

// Process is the entry point for CLI commands. The program arguments are
// matched against commands and the appropriate one, if any, is executed.
// Invoked without arguments, the full usage is printed.
//
// CLI errors are printed to os.Stderr followed by os.Exit(2). Errors from
// command execution are returned to the caller.
func Process(abstract string, commands Commands) error {
	program, args := os.Args[0], os.Args[1:]
	err := dispatch(os.Stdout, os.Stderr, program, abstract, args, commands)
	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	return err
}

func dispatch(stdout, stderr io.Writer, program, abstract string, args []string, commands Commands) error {
	for _, cmd := range commands {
		cmd.FlagSet.Init(cmd.Name(), flag.ContinueOnError)
		cmd.FlagSet.SetOutput(ioutil.Discard)
	}

	if len(args) == 0 {
		printFullUsage(stdout, program, abstract, commands)
		return nil
	}

	command := args[0]
	if (command == "help" || command == "-h") && len(args) == 1 {
		printFullUsage(stdout, program, abstract, commands)
		return nil
	}

	if command == "help" {
		if len(args) > 2 {
			fmt.Fprintf(stderr, "Usage: %s help [command]\n\n", program)
			fmt.Fprintln(stderr, "Too many arguments given.")
			return errUsage
		}
		if err := printCommandUsage(stdout, program, args[1], commands); err != nil {
			fmt.Fprintf(stderr, "Unknown help topic '%s'\n\n", args[1])
			fmt.Fprintf(stderr, "Run '%s help' for available topics.\n", program)
			return errUsage
		}
		return nil
	}

	for _, cmd := range commands {
		if cmd.Name() != command || !cmd.Runnable() {
			continue
		}

		err := cmd.Run(cmd, args[1:])
		var perr *cmdParseError
		if !errors.As(err, &perr) {
			return err
		}

		// '-h' surfaces as a parse error from the flag package but is a
		// valid request; the flags are only known after cmd.Run.
		if errors.Is(err, flag.ErrHelp) {
			printCommandHelp(stdout, stderr, program, cmd)
			return nil
		}

		printCommandParsingError(stderr, program, cmd, err)
		return errUsage
	}

	fmt.Fprintf(stderr, "Unknown command '%s'\n\n", command)
	fmt.Fprintf(stderr, "Run '%s help' for available commands.\n", program)
	return errUsage
}
