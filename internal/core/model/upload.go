package model

type UploadStatus string

const (
	StatusProcessing        UploadStatus = "PROCESSING"
	StatusFinished          UploadStatus = "FINISHED"
	StatusFinishedWithError UploadStatus = "FINISHED_WITH_ERROR"
)

// Mapping routes one or more source columns into a single destination column.
type Mapping struct {
	SourceColumns     []string    `json:"sourceColumns" yaml:"sourceColumns"`
	DestinationColumn string      `json:"destinationColumn" yaml:"destinationColumn"`
	Transformations   []Transform `json:"transformations" yaml:"transformations"`
}

type Transform string

const (
	TransformLowercase Transform = "lowercase"
	TransformUppercase Transform = "uppercase"
	TransformTrim      Transform = "trim"
	TransformNormalize Transform = "normalize"
)

type Upload struct {
	Name      string       `json:"name"`
	Processed int64        `json:"processed"`
	OutOf     int64        `json:"outOf"`
	TimeStamp int64        `json:"timeStamp"`
	Mappings  []Mapping    `json:"mappings"`
	Status    UploadStatus `json:"status"`
}

// Field is one mapped column value of a Row, labeled by its destination column.
type Field struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}
