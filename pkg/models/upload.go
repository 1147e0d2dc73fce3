package models

import (
	"encoding/json"

	"github.com/argo-explorer/dashboard/pkg/jsonutil"
)

// UploadState is the upload widget's visual state.
type UploadState string

const (
	UploadIdle      UploadState = "idle"
	UploadUploading UploadState = "uploading"
	UploadSuccess   UploadState = "success"
	UploadError     UploadState = "error"
)

// UploadStatus is a snapshot of the widget.
type UploadStatus struct {
	State     UploadState `json:"state"`
	Progress  int         `json:"progress"`
	Filename  string      `json:"filename,omitempty"`
	Message   string      `json:"message,omitempty"`
	Available *bool       `json:"available,omitempty"`
}

// UploadResult is what the backend echoes after ingesting a NetCDF file.
type UploadResult struct {
	FloatID          string `json:"float_id,omitempty"`
	ProfilesIngested *int   `json:"profiles_ingested,omitempty"`
	Message          string `json:"message,omitempty"`
}

// UnmarshalJSON accepts numeric or string identifiers and counts.
func (u *UploadResult) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*u = UploadResult{
		FloatID: jsonutil.StringValue(fields["float_id"]),
		Message: jsonutil.StringValue(fields["message"]),
	}
	if n, ok := jsonutil.Float(fields["profiles_ingested"]); ok {
		count := int(n)
		u.ProfilesIngested = &count
	}
	return nil
}
