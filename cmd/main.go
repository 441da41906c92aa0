package main

import "github.com/kerbaras/shelf/cmd/shelf"

func main() {
	shelf.Execute()
}
