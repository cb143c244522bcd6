package issuestore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

const maxLineSize = 1 << 20

// ReadLog streams every issue in the log at path to fn in emission order.
// Returning false from fn stops early.
func ReadLog(path string, fn func(issue *model.Issue) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open issue log: %w", err)
	}
	defer f.Close()

	return scan(f, fn)
}

func scan(r io.Reader, fn func(issue *model.Issue) bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0

	for sc.Scan() {
		line++

		if len(sc.Bytes()) == 0 {
			continue
		}

		var issue model.Issue

		err := json.Unmarshal(sc.Bytes(), &issue)
		if err != nil {
			return fmt.Errorf("issue log line %d: %w", line, err)
		}

		if !fn(&issue) {
			return nil
		}
	}

	err := sc.Err()
	if err != nil {
		return fmt.Errorf("read issue log: %w", err)
	}

	return nil
}
