// Package main is the entry point for the formgate CLI, a small
// harness around the field engine for validating value sets against
// declarative schemas.
package main

func main() {
	Execute()
}
