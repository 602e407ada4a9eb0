package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	err := cmd.ExecuteContext(context.Background())
	if err != nil && !errors.Is(err, context.Canceled) && exitCode(err) != 0 {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}
