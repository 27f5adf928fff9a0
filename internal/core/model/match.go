package model

// Match tracks progress of a match-and-export job. Completed may be set
// externally to stop the job at its next row boundary.
type Match struct {
	Name      string `json:"name"`
	Processed int64  `json:"processed"`
	OutOf     int64  `json:"outOf"`
	Completed bool   `json:"completed"`
	TimeStamp int64  `json:"timeStamp"`
	Error     string `json:"error,omitempty"`
}
