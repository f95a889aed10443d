package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// X keycodes are kernel keycodes shifted by 8.
const xkbKeycodeOffset = 8

// ParseXmodmap reads the output of `xmodmap -pke` and returns a mapping of
// key name to kernel keycode. Every symbol on a line is mapped to the line's
// keycode; if a symbol appears on multiple lines the last one wins.
func ParseXmodmap(r io.Reader) (map[string]int, error) {
	codes := make(map[string]int)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// keycode  38 = a A a A adiaeresis Adiaeresis
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[0] != "keycode" || fields[2] != "=" {
			continue
		}

		code, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}

		for _, name := range fields[3:] {
			codes[strings.ToLower(name)] = code - xkbKeycodeOffset
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read xmodmap: %w", err)
	}

	return codes, nil
}
