// sketchctl is the command-line interface for sketchd.
//
// Usage:
//
//	sketchctl extract drawing.json
//	sketchctl record --subject alice drawing.json
//	sketchctl history alice
//	sketchctl watch
//
// See --help for all available commands.
package main

func main() {
	Execute()
}
