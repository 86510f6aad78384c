package intent

import (
	"fmt"
	"strings"
)

// units and tens cover spoken volume levels 0–100; nothing bigger is valid.
var units = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tens = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// parseSpokenNumber reads "thirty", "thirty five", "a hundred", etc.
func parseSpokenNumber(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", " ")

	switch s {
	case "hundred", "a hundred", "one hundred":
		return 100, nil
	}

	words := strings.Fields(s)
	switch len(words) {
	case 1:
		if n, ok := units[words[0]]; ok {
			return n, nil
		}
		if n, ok := tens[words[0]]; ok {
			return n, nil
		}
	case 2:
		t, okT := tens[words[0]]
		u, okU := units[words[1]]
		if okT && okU && u < 10 {
			return t + u, nil
		}
	}
	return 0, fmt.Errorf("intent: cannot parse number %q", s)
}
