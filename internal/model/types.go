package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type RunRecord struct {
	VersionedRecord
	ID              string  `json:"id"`
	Seed            int64   `json:"seed"`
	Precision       uint32  `json:"precision"`
	Stubbornness    float64 `json:"stubbornness"`
	Scenario        string  `json:"scenario,omitempty"`
	DurationSeconds int64   `json:"duration_seconds"`
	CreatedAtUTC    string  `json:"created_at_utc"`
}

type OutcomeRecord struct {
	VersionedRecord
	RunID             string  `json:"run_id"`
	IsAlive           bool    `json:"is_alive"`
	CauseOfDeath      string  `json:"cause_of_death,omitempty"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
	FinalTemperatureK float64 `json:"final_temperature_k"`
	FinalEntropy      float64 `json:"final_entropy"`
	FinalCorruption   float64 `json:"final_corruption"`
	InstinctOverrides int     `json:"instinct_overrides"`
	LCDAttacks        int     `json:"lcd_attacks"`
}

type TrajectoryPoint struct {
	Step         int     `json:"step"`
	PhotonCount  int     `json:"photon_count"`
	Entropy      float64 `json:"entropy"`
	TemperatureK float64 `json:"temperature_k"`
	Corruption   float64 `json:"corruption"`
	Activity     float64 `json:"activity"`
	Stress       float64 `json:"stress"`
}
