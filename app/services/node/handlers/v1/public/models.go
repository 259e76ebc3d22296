package public

// newBlock is the payload for asking the node to mine a block.
type newBlock struct {
	Data string `json:"data" validate:"required,max=4096"`
}

// peerInfo is a known peer with the name from the name service.
type peerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Host string `json:"host"`
}

// chainInfo is the full chain with the values needed to check it.
type chainInfo struct {
	Difficulty uint    `json:"difficulty"`
	Length     int     `json:"length"`
	Blocks     []block `json:"blocks"`
}

// block is a block as the public API presents it.
type block struct {
	ID           uint64 `json:"id"`
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash"`
	Timestamp    int64  `json:"timestamp"`
	Data         string `json:"data"`
	Nonce        uint64 `json:"nonce"`
}
