package calllog

import (
	"bufio"
	"encoding/json"
	"os"
)

// ReadLastEntries returns the last n entries, oldest first, without
// checking the hash chain. A missing file yields no entries.
func ReadLastEntries(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(entries) <= n {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}
