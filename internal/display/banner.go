package display

import (
	"fmt"
	"os"
)

// PrintBanner prints the ASCII art banner, cyan when color is enabled.
func PrintBanner(color bool) {
	if color {
		fmt.Fprint(os.Stdout, "\033[1;96m")
	}
	fmt.Fprint(os.Stdout, `                _         _
 ___  ___  _ __| |_ _ __ (_)_ __   ___
/ __|/ _ \| '__| __| '_ \| | '_ \ / _ \
\__ \ (_) | |  | |_| |_) | | |_) |  __/
|___/\___/|_|   \__| .__/|_| .__/ \___|
                   |_|     |_|
`)
	if color {
		fmt.Fprintln(os.Stdout, "\033[0m")
	}
}
