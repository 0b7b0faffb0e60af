package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// KeypointSchema defines the keypoint set a batch is annotated against.
// The definition is stored as JSON so projects can register new skeletons
// without a migration, but ingestion always validates detector output
// against the decoded definition, never against the raw map.
type KeypointSchema struct {
	ID          string `json:"id" gorm:"primaryKey;size:36"`
	Name        string `json:"name" gorm:"size:100;uniqueIndex:idx_schema_name_version"`
	Version     string `json:"version" gorm:"size:10;uniqueIndex:idx_schema_name_version"`
	Description string `json:"description,omitempty"`

	Definition     datatypes.JSON `json:"definition"`
	TotalKeypoints int            `json:"total_keypoints"`

	MinConfidenceThreshold float64 `json:"min_confidence_threshold" gorm:"default:0.3"`
	MaxMissingKeypoints    int     `json:"max_missing_keypoints" gorm:"default:3"`

	IsActive  bool      `json:"is_active" gorm:"index;default:true"`
	CreatedBy string    `json:"created_by" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SchemaDefinition is the decoded shape of KeypointSchema.Definition.
type SchemaDefinition struct {
	Keypoints   []KeypointSpec `json:"keypoints"`
	Connections [][2]int       `json:"connections,omitempty"`
}

// KeypointSpec names a single point in the skeleton.
type KeypointSpec struct {
	Name     string `json:"name"`
	Required bool   `json:"required,omitempty"`
}

// DecodeDefinition unpacks the stored JSON definition.
func (s *KeypointSchema) DecodeDefinition() (SchemaDefinition, error) {
	var def SchemaDefinition
	if len(s.Definition) == 0 {
		return def, nil
	}
	err := json.Unmarshal(s.Definition, &def)
	return def, err
}

// LabelSet returns the set of keypoint names the schema accepts.
func (s *KeypointSchema) LabelSet() (map[string]struct{}, error) {
	def, err := s.DecodeDefinition()
	if err != nil {
		return nil, err
	}
	labels := make(map[string]struct{}, len(def.Keypoints))
	for _, kp := range def.Keypoints {
		labels[kp.Name] = struct{}{}
	}
	return labels, nil
}
