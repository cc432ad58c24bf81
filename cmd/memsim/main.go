// memsim simulates contiguous memory allocation with first-fit, best-fit,
// and worst-fit placement.
package main

func main() {
	execute()
}
