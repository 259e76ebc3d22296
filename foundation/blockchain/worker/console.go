package worker

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Set of console commands.
const (
	cmdListPeers   = "ls p"
	cmdListChain   = "ls c"
	cmdCreateBlock = "create b"
)

// handleInput executes a line of console input. It returns the data to
// mine when the line asks for a new block.
func (w *Worker) handleInput(line string) (string, bool) {
	line = strings.TrimSpace(line)

	switch {
	case line == "":
		return "", false

	case line == cmdListPeers:
		w.printPeers()
		return "", false

	case line == cmdListChain:
		w.printChain()
		return "", false

	case strings.HasPrefix(line, cmdCreateBlock):
		data := strings.TrimSpace(strings.TrimPrefix(line, cmdCreateBlock))
		if data == "" {
			fmt.Fprintln(w.output, "usage: create b <data>")
			return "", false
		}
		fmt.Fprintf(w.output, "mining block with data %q\n", data)
		return data, true
	}

	fmt.Fprintf(w.output, "unknown command %q\n", line)
	return "", false
}

// printPeers writes the known peers to the output.
func (w *Worker) printPeers() {
	fmt.Fprintln(w.output, "Discovered Peers:")

	for _, pr := range w.state.RetrieveKnownPeers() {
		name := pr.ID
		if w.cfg.Lookup != nil && pr.ID != "" {
			name = w.cfg.Lookup(pr.ID)
		}
		fmt.Fprintf(w.output, "%s %s\n", pr.Host, name)
	}
}

// printChain writes the local chain as indented JSON to the output.
func (w *Worker) printChain() {
	fmt.Fprintln(w.output, "Local Blockchain:")

	data, err := json.MarshalIndent(w.state.RetrieveChain(), "", "  ")
	if err != nil {
		w.evHandler("worker: printChain: ERROR: %s", err)
		return
	}

	fmt.Fprintln(w.output, string(data))
}
