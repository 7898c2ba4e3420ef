package inference

import (
	"image"

	"github.com/google/uuid"

	"github.com/nvr-ai/go-pose/models/postprocess"
)

// Kind tags the payload of a Result.
type Kind int

const (
	// KindPose results carry a decoded skeleton.
	KindPose Kind = iota
	// KindAttributes results carry person attributes.
	KindAttributes
	// KindReidentification results carry a re-identification embedding.
	KindReidentification
)

func (k Kind) String() string {
	switch k {
	case KindPose:
		return "pose"
	case KindAttributes:
		return "attributes"
	case KindReidentification:
		return "reidentification"
	default:
		return "unknown"
	}
}

// Attribute is one named person attribute and its confidence.
type Attribute struct {
	Name  string
	Score float32
}

// Result is one detection located in frame coordinates.
type Result struct {
	// Kind selects which payload is populated.
	Kind Kind
	// Batch identifies the Submit call that produced the result.
	Batch uuid.UUID
	// Request is the index of the enqueued region within its batch.
	Request int
	// ROI is the region of the frame the network saw.
	ROI image.Rectangle
	// Location encloses the detection in frame pixels.
	Location image.Rectangle
	// Pose is set for KindPose, in frame pixels.
	Pose postprocess.Pose
	// Attributes is set for KindAttributes.
	Attributes []Attribute
	// Embedding is set for KindReidentification.
	Embedding []float32
}
