package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// UserDataEntry is a free-form string attached to an art mesh by the model author.
type UserDataEntry struct {
	Target string `json:"Target"`
	ID     string `json:"Id"`
	Value  string `json:"Value"`
}

type UserData struct {
	entries []UserDataEntry
}

var ErrEmptyUserData = errors.New("user data is empty")

func ParseUserData(data []byte) (*UserData, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUserData
	}
	var f struct {
		Version  int             `json:"Version"`
		UserData []UserDataEntry `json:"UserData"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode user data: %w", err)
	}
	return &UserData{entries: f.UserData}, nil
}

func (ud *UserData) Count() int { return len(ud.entries) }

// Value returns the user data of the given target and id.
func (ud *UserData) Value(target, id string) (string, bool) {
	for _, e := range ud.entries {
		if e.Target == target && e.ID == id {
			return e.Value, true
		}
	}
	return "", false
}

// ArtMeshes returns the ids of every art mesh carrying user data.
func (ud *UserData) ArtMeshes() []string {
	ids := []string{}
	for _, e := range ud.entries {
		if e.Target == "ArtMesh" {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
