package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/otherjamesbrown/penf-transcripts/config"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
)

// stdinName is the argument that selects standard input.
const stdinName = "-"

// errNoInput is returned when there is neither a file argument nor piped input.
var errNoInput = errors.New("no input: pass a file, '-' or pipe a transcript on stdin")

// input is one transcript read from a file or stdin.
type input struct {
	Data []byte

	// Path is empty for stdin.
	Path string
}

// readInput reads the transcript named by args. No argument reads stdin only
// when it is not an interactive terminal.
func readInput(deps *CommandDeps, args []string, maxBytes int) (*input, error) {
	name := stdinName
	if len(args) > 0 {
		name = args[0]
	}

	if name == stdinName {
		if len(args) == 0 && deps.StdinIsTerminal() {
			return nil, errNoInput
		}
		data, err := readLimited(deps.In, maxBytes)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return &input{Data: data}, nil
	}

	path, err := config.ExpandPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	defer f.Close()

	data, err := readLimited(f, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return &input{Data: data, Path: path}, nil
}

// rawSlack covers a byte order mark in front of the content.
const rawSlack = 4

// rawLimit is the most raw input read before decoding. UTF-16 spends at most
// two bytes per UTF-8 byte it decodes to, so a longer input cannot fit in
// maxBytes once decoded.
func rawLimit(maxBytes int) int64 {
	if maxBytes <= 0 {
		maxBytes = meeting.DefaultMaxBytes
	}
	return 2*int64(maxBytes) + rawSlack
}

// readLimited reads the whole input when it is within rawLimit and rejects it
// as too large otherwise. Input within the limit is returned untouched so the
// validator sees the exact decoded text.
func readLimited(r io.Reader, maxBytes int) ([]byte, error) {
	limit := rawLimit(maxBytes)
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, meeting.ValidationResult{
			Code:    meeting.ValidationTooLarge,
			Message: fmt.Sprintf("transcript is too large: more than %d bytes before decoding", limit),
		}.Err()
	}
	return data, nil
}
