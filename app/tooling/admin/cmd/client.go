package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// chainInfo is the response of the chain endpoint.
type chainInfo struct {
	Difficulty uint             `json:"difficulty"`
	Length     int              `json:"length"`
	Blocks     []database.Block `json:"blocks"`
}

// peerInfo is an entry of the peers endpoint.
type peerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Host string `json:"host"`
}

// errorResponse is the body the node returns on failure.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

var client = http.Client{
	Timeout: 10 * time.Second,
}

// fetchChain retrieves the chain from the node.
func fetchChain(url string) (chainInfo, error) {
	var ci chainInfo
	if err := send(http.MethodGet, url+"/v1/chain", nil, &ci); err != nil {
		return chainInfo{}, err
	}
	return ci, nil
}

// fetchPeers retrieves the peers the node knows about.
func fetchPeers(url string) ([]peerInfo, error) {
	var peers []peerInfo
	if err := send(http.MethodGet, url+"/v1/peers", nil, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

// send is a helper function to send an HTTP request to a node.
func send(method string, url string, dataSend any, dataRecv any) error {
	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	if dataSend != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
			return fmt.Errorf("node responded %s", resp.Status)
		}
		if len(er.Fields) > 0 {
			return fmt.Errorf("%s: %v", er.Error, er.Fields)
		}
		return errors.New(er.Error)
	}

	if resp.StatusCode == http.StatusNoContent || dataRecv == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(dataRecv)
}
