/*
Copyright © 2025 gsd contributors
*/
package main

import "github.com/gsdhq/gsd/cmd"

func main() {
	cmd.Execute()
}
