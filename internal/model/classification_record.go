package model

// ClassificationRecord is the archived form of one classification call.
type ClassificationRecord struct {
	ID         string   `json:"id"`
	ContractID string   `json:"contract_id"`
	Mode       Mode     `json:"mode"`
	Model      string   `json:"model"`
	Result     string   `json:"result"`
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors"`
	Ctime      int64    `json:"ctime"`
}
