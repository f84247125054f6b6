package entity

// Verdict is the validation model's answer for one row.
type Verdict struct {
	StrainID   string  `json:"strain_id"`
	Breeder    string  `json:"breeder"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Err        string  `json:"-"`
}

// ValidationRequest carries one row to the validation model.
type ValidationRequest struct {
	StrainID  string            `json:"strain_id"`
	Vendor    string            `json:"vendor"`
	SourceURL string            `json:"source_url"`
	Fields    map[string]string `json:"fields"`
	PageText  string            `json:"page_text"`
}
