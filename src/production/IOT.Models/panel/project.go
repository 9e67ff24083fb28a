package panel_models

import (
	"time"

	properties "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Properties"
)

// Project groups the input and control properties exchanged with the
// devices that report under its name.
type Project struct {
	ID          int64               `json:"id" db:"id"`
	Name        string              `json:"name" db:"name"`
	Description string              `json:"description" db:"description"`
	Properties  properties.Document `json:"properties" db:"properties"`
	Version     int64               `json:"version" db:"version"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" db:"updated_at"`
}

// NewProject returns a project with both property namespaces empty.
func NewProject(name, description string) *Project {
	now := time.Now().UTC()
	return &Project{
		Name:        name,
		Description: description,
		Properties:  properties.NewDocument(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// PropertyView is a decoded property as shown to operators.
type PropertyView struct {
	Name  string      `json:"name"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// ToPropertyViews flattens decoded properties for a JSON response.
func ToPropertyViews(props []properties.Property) []PropertyView {
	out := make([]PropertyView, len(props))
	for i, p := range props {
		out[i] = PropertyView{Name: p.Name, Type: p.Kind().String(), Value: p.Value.Interface()}
	}
	return out
}
