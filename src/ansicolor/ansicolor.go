package ansicolor

import (
	"os"
	"runtime"
)

// Terminal escape codes used by the pretty log writer and the CLI tree printer.
// They are blanked out when the output can't render them.

var Reset = "\033[0m"
var Bold = "\033[1m"
var Faint = "\033[2m"

var Red = "\033[31m"
var Green = "\033[32m"
var Yellow = "\033[33m"
var Blue = "\033[34m"
var Purple = "\033[35m"
var Cyan = "\033[36m"
var Gray = "\033[37m"

var BgRed = "\033[41m"
var BgGreen = "\033[42m"
var BgYellow = "\033[43m"
var BgBlue = "\033[44m"

func init() {
	if runtime.GOOS == "windows" || os.Getenv("NO_COLOR") != "" {
		Disable()
	}
}

// Disable blanks out every escape code.
func Disable() {
	for _, code := range []*string{
		&Reset, &Bold, &Faint,
		&Red, &Green, &Yellow, &Blue, &Purple, &Cyan, &Gray,
		&BgRed, &BgGreen, &BgYellow, &BgBlue,
	} {
		*code = ""
	}
}

// Wrap surrounds s with the given codes and a trailing reset.
func Wrap(s string, codes ...string) string {
	if Reset == "" {
		return s
	}
	var prefix string
	for _, c := range codes {
		prefix += c
	}
	return prefix + s + Reset
}
