package main

import (
	"fmt"
	"os"
)

func fatal(a ...any) {
	_, err := fmt.Fprintln(os.Stderr, a...)
	if err != nil {
		panic(err)
	}

	os.Exit(1)
}

func main() {
	a := &app{out: os.Stdout}
	root, err := newRootCmd(a)
	if err != nil {
		fatal("error:", err)
	}
	if err := root.Execute(); err != nil {
		a.sync()
		fatal("error:", err)
	}
	a.sync()
}
