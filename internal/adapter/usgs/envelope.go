package usgs

import "strconv"

// Envelope types for the USGS Water Services JSON response. Only the fields
// the pipeline consumes are declared; everything else is ignored on decode.

type envelope struct {
	Value struct {
		QueryInfo struct {
			QueryURL string `json:"queryURL"`
		} `json:"queryInfo"`
		TimeSeries []timeSeries `json:"timeSeries"`
	} `json:"value"`
}

type timeSeries struct {
	Name     string       `json:"name"`
	Variable variable     `json:"variable"`
	Values   []valueBlock `json:"values"`
}

type variable struct {
	VariableCode []struct {
		Value string `json:"value"`
	} `json:"variableCode"`
	Unit struct {
		UnitCode string `json:"unitCode"`
	} `json:"unit"`
	// NoDataValue is the sentinel the service substitutes for absent
	// measurements, commonly -999999.
	NoDataValue noDataValue `json:"noDataValue"`
}

func (v variable) noData() (float64, bool) {
	return v.NoDataValue.val, v.NoDataValue.set
}

type valueBlock struct {
	Value []valuePoint `json:"value"`
}

type valuePoint struct {
	Value      string   `json:"value"`
	Qualifiers []string `json:"qualifiers"`
	DateTime   string   `json:"dateTime"`
}

// noDataValue tolerates both numeric and quoted forms.
type noDataValue struct {
	val float64
	set bool
}

func (n *noDataValue) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unrecognized sentinel forms are ignored rather than fatal; the
		// value column still parses on its own.
		return nil
	}
	n.val, n.set = v, true
	return nil
}
