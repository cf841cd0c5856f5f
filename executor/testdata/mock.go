//go:build wasip1

// Mock interpreter for testing executor logic without real Python/JS.
// Build with: GOOS=wasip1 GOARCH=wasm go build -o mock.wasm mock.go
//
// The program receives code as its second argument and interprets it one
// line at a time:
//
//	fail:<msg>   write msg to stderr and exit with status 3
//	spin         loop forever
//	env:<KEY>    print the value of KEY
//	ls:<dir>     print the entries of dir
//	err:<msg>    write msg to stderr and continue
//	anything     print the line
package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		return
	}

	for _, line := range strings.Split(os.Args[1], "\n") {
		switch {
		case strings.HasPrefix(line, "fail:"):
			fmt.Fprintln(os.Stderr, strings.TrimPrefix(line, "fail:"))
			os.Exit(3)
		case line == "spin":
			for {
			}
		case strings.HasPrefix(line, "env:"):
			fmt.Println(os.Getenv(strings.TrimPrefix(line, "env:")))
		case strings.HasPrefix(line, "ls:"):
			entries, err := os.ReadDir(strings.TrimPrefix(line, "ls:"))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			for _, e := range entries {
				fmt.Println(e.Name())
			}
		case strings.HasPrefix(line, "err:"):
			fmt.Fprintln(os.Stderr, strings.TrimPrefix(line, "err:"))
		default:
			fmt.Println(line)
		}
	}
}
