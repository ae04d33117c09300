package pubchem

// PropertyResponse ist die Antwort des Property-Endpunkts
// (/compound/name/<name>/property/IUPACName/JSON).
type PropertyResponse struct {
	PropertyTable struct {
		Properties []struct {
			CID       int64  `json:"CID"`
			IUPACName string `json:"IUPACName"`
		} `json:"Properties"`
	} `json:"PropertyTable"`
}

// SynonymResponse ist die Antwort des Synonym-Endpunkts
// (/compound/cid/<cid>/synonyms/JSON).
type SynonymResponse struct {
	InformationList struct {
		Information []struct {
			CID     int64    `json:"CID"`
			Synonym []string `json:"Synonym"`
		} `json:"Information"`
	} `json:"InformationList"`
}
