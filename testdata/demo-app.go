package main

import (
	"fmt"
	"os"
	"strconv"
)

//go:noinline
func square(n int) int {
	return n * n
}

//go:noinline
func cube(n int) int {
	return n * square(n)
}

//go:noinline
func factorial(n int) int {
	if n <= 1 {
		return 1
	}
	return n * factorial(n-1)
}

//go:noinline
func report(label string, value int) {
	fmt.Printf("%s = %d\n", label, value)
}

func main() {
	n := 5
	if len(os.Args) > 1 {
		parsed, err := strconv.Atoi(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid argument: %v\n", err)
			os.Exit(1)
		}
		n = parsed
	}

	report("square", square(n))
	report("cube", cube(n))
	report("factorial", factorial(n))
}
