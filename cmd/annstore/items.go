package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hupe1980/annstore"
	"github.com/hupe1980/annstore/codec"
)

// readItems decodes one JSON item per line. Blank lines are skipped.
func readItems(r io.Reader) ([]annstore.Item, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var items []annstore.Item
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		var it annstore.Item
		if err := codec.Default.Unmarshal(data, &it); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, it)
	}
	return items, sc.Err()
}

// openItems reads items from path, or stdin for "-".
func openItems(path string) ([]annstore.Item, error) {
	if path == "" || path == "-" {
		return readItems(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readItems(f)
}

func parseVector(s string) ([]float32, error) {
	fields := strings.Split(s, ",")
	v := make([]float32, 0, len(fields))
	for _, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, fmt.Errorf("vector component %q: %w", f, err)
		}
		v = append(v, float32(x))
	}
	return v, nil
}

func parseLabels(s string) ([]int64, error) {
	var labels []int64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		l, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", f, err)
		}
		labels = append(labels, l)
	}
	return labels, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := codec.Default.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
