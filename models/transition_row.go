package models

// TransitionRow ist eine Zeile der flachen Master-Tabelle: genau ein Ionenpaar
// samt der pro Datensatz beförderten Parameter. Die Spaltennamen entsprechen
// den Spalten des veröffentlichten Master-Datensatzes.
type TransitionRow struct {
	MethodID   *string `json:"Method_ID"`
	RunID      *string `json:"Run_ID"`
	Compound   *string `json:"Compound"`
	CAS        *string `json:"CAS"`
	SourceFile string  `json:"Source_File,omitempty"`

	PrecursorMZ *float64 `json:"Precursor_mz"`
	ProductMZ   *float64 `json:"Product_mz"`
	Polarity    *string  `json:"Polarity"`
	Type        string   `json:"Type"`
	CEValue     any      `json:"CE_Value"`
	CEUnit      string   `json:"CE_Unit,omitempty"`

	RTMin     any `json:"RT_min,omitempty"`
	LOQ       any `json:"LOQ,omitempty"`
	MatrixTag any `json:"Matrix_Tag,omitempty"`
	DPV       any `json:"DP_V,omitempty"`
	EPV       any `json:"EP_V,omitempty"`
	CXPV      any `json:"CXP_V,omitempty"`
	FVV       any `json:"FV_V,omitempty"`

	// Kanonische Matrix-Tags aus der Keyword-Klassifikation des Matrix_Tag-Texts.
	MatrixCanonical []string `json:"Matrix_Canonical,omitempty"`

	// Nicht beförderte Parameter, verlustfrei als Name → "Wert Einheit".
	OtherParams map[string]string `json:"Other_Params,omitempty"`
}
