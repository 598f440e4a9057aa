// logstat tabulates voskernel's diagnostic stream
// ("[LEVEL] file:line - message") by level and by source file.
//
// Adapted from a file-scan/regex-extract shape used elsewhere in this
// codebase for transaction-log parsing, retargeted at the kernel's own
// [LEVEL] file:line diagnostic line.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
)

// The optional escape after the closing bracket is the ANSI color reset
// platform.Console writes between the level tag and the location.
var lineRe = regexp.MustCompile(`\[(DEBUG|INFO|WARNING|ERROR|FATAL)\](?:\x1b\[\d+m)?\s+([^:]+:\d+)\s+-\s+(.*)`)

type tally struct {
	byLevel map[string]int
	byFile  map[string]int
	total   int
}

func newTally() *tally {
	return &tally{byLevel: make(map[string]int), byFile: make(map[string]int)}
}

func scan(r io.Reader, t *tally) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadSlice('\n')
		if err == io.EOF {
			if len(line) > 0 {
				t.absorb(line)
			}
			break
		}
		if err != nil {
			return fmt.Errorf("reading: %w", err)
		}
		t.absorb(line)
	}
	return nil
}

func (t *tally) absorb(line []byte) {
	m := lineRe.FindSubmatch(line)
	if m == nil {
		return
	}
	level := string(m[1])
	file := string(m[2])
	t.byLevel[level]++
	t.byFile[file]++
	t.total++
}

func (t *tally) print(w io.Writer) {
	fmt.Fprintf(w, "total diagnostic lines: %d\n\n", t.total)

	fmt.Fprintln(w, "by level:")
	for _, level := range sortedKeys(t.byLevel) {
		fmt.Fprintf(w, "  %-8s %d\n", level, t.byLevel[level])
	}

	fmt.Fprintln(w, "\nby file:")
	for _, file := range sortedKeys(t.byFile) {
		fmt.Fprintf(w, "  %-24s %d\n", file, t.byFile[file])
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func usage() {
	fmt.Printf("%s <logfile> [<logfile> ...]\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	t := newTally()
	for _, path := range os.Args[1:] {
		f, err := os.Open(path)
		if err != nil {
			fmt.Printf("failed to open %s: %v\n", path, err)
			os.Exit(1)
		}
		err = scan(f, t)
		f.Close()
		if err != nil {
			fmt.Printf("failed to scan %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	t.print(os.Stdout)
}
