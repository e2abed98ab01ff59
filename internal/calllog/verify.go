package calllog

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
)

// VerifyLogIntegrity walks the log and checks every link of the hash
// chain. Any mismatch means the file was edited or truncated mid-chain.
func VerifyLogIntegrity(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var prevHash string
	line := 0

	for scanner.Scan() {
		line++

		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return eris.Errorf("line %d: invalid call log entry", line)
		}

		if e.PrevHash != prevHash {
			return eris.Errorf("line %d: hash chain broken (prev hash mismatch)", line)
		}

		if e.Hash != computeHash(e) {
			return eris.Errorf("line %d: hash mismatch (entry modified)", line)
		}

		prevHash = e.Hash
	}

	return scanner.Err()
}
