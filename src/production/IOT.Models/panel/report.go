package panel_models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Report sources.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// InputReport records one accepted device report and the control values
// sent back in reply.
type InputReport struct {
	ID         primitive.ObjectID     `bson:"_id,omitempty" json:"id,omitempty"`
	ProjectID  int64                  `bson:"project_id" json:"project_id"`
	Project    string                 `bson:"project" json:"project"`
	Source     string                 `bson:"source" json:"source"`
	Values     map[string]string      `bson:"values" json:"values"`
	Control    map[string]interface{} `bson:"control" json:"control"`
	ReceivedAt time.Time              `bson:"received_at" json:"received_at"`
}
