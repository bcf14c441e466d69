package main

import "github.com/kiesman99/pdfsnap/cmd"

func main() {
	cmd.Execute()
}
