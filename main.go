package main

import "github.com/MeKo-Tech/edgecanvas/internal/cmd"

func main() {
	cmd.Execute()
}
