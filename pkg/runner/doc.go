/*
Package runner drives a conversation from a terminal or any line-oriented stream.

It is the bridge between the dialogue engine and the outside world: it opens
or resumes a session, reads one line per turn through a pluggable IOHandler,
feeds it to the engine and presents the replies.

# Key Components

  - Runner: the read-eval loop. It ends on "exit"/"quit", end of input,
    Ctrl+C, or when the session terminates.
  - TextHandler: interactive CLI usage, optionally streaming reply text and
    rendering it (e.g. markdown to ANSI).
  - JSONHandler: JSON-Lines for scripting and automation.
  - SanitizeInput: the size, UTF-8 and control character gate every surface
    applies before input reaches the engine.

# Usage

	r := runner.NewRunner(
		runner.WithSessionID("user-1"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if err := r.Run(ctx, engine); err != nil {
		log.Fatal(err)
	}
*/
package runner
