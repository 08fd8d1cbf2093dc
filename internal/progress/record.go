// Package progress persists the migration progress record.
//
// The record marks which idempotent workflow steps have already produced
// their side effect. Presence of a key means "done, never repeat"; absence
// means "not yet attempted". It is the only state that survives a restart.
package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Key names a field of the persisted record.
type Key string

// Record keys, in persistence order.
const (
	KeyMigrationID           Key = "migration_id"
	KeySourceImageID         Key = "source_image_id"
	KeySourceImageAvailable  Key = "source_image_available"
	KeySourceImageDetails    Key = "source_image_details"
	KeyExportWorkRequestID   Key = "export_work_request_id"
	KeyImageExportComplete   Key = "image_export_complete"
	KeyTargetImageID         Key = "target_image_id"
	KeyTargetImageAvailable  Key = "target_image_available"
	KeyTargetInstanceID      Key = "target_instance_id"
	KeyTargetInstanceRunning Key = "target_instance_running"
)

var orderedKeys = []Key{
	KeyMigrationID,
	KeySourceImageID,
	KeySourceImageAvailable,
	KeySourceImageDetails,
	KeyExportWorkRequestID,
	KeyImageExportComplete,
	KeyTargetImageID,
	KeyTargetImageAvailable,
	KeyTargetInstanceID,
	KeyTargetInstanceRunning,
}

// ErrCorrupt is returned when a persisted snapshot cannot be decoded.
var ErrCorrupt = errors.New("progress record is corrupt")

// ImageDetails is the snapshot of source image attributes threaded into the
// image import request in the target region.
type ImageDetails struct {
	OS         string `json:"os"`
	OSVersion  string `json:"os_ver"`
	LaunchMode string `json:"launch_mode"`
}

// Record is the persisted migration progress. Each field belongs to exactly
// one workflow step; a zero value means the step has not committed it.
type Record struct {
	MigrationID           string        `json:"migration_id,omitempty"`
	SourceImageID         string        `json:"source_image_id,omitempty"`
	SourceImageAvailable  bool          `json:"source_image_available,omitempty"`
	SourceImageDetails    *ImageDetails `json:"source_image_details,omitempty"`
	ExportWorkRequestID   string        `json:"export_work_request_id,omitempty"`
	ImageExportComplete   bool          `json:"image_export_complete,omitempty"`
	TargetImageID         string        `json:"target_image_id,omitempty"`
	TargetImageAvailable  bool          `json:"target_image_available,omitempty"`
	TargetInstanceID      string        `json:"target_instance_id,omitempty"`
	TargetInstanceRunning bool          `json:"target_instance_running,omitempty"`

	// extra holds keys this version does not know about, typically added by
	// hand. They are written back unchanged.
	extra map[string]json.RawMessage
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{}
}

// Has reports whether the given key is committed. Boolean keys count as
// committed only when true.
func (r *Record) Has(key Key) bool {
	switch key {
	case KeyMigrationID:
		return r.MigrationID != ""
	case KeySourceImageID:
		return r.SourceImageID != ""
	case KeySourceImageAvailable:
		return r.SourceImageAvailable
	case KeySourceImageDetails:
		return r.SourceImageDetails != nil
	case KeyExportWorkRequestID:
		return r.ExportWorkRequestID != ""
	case KeyImageExportComplete:
		return r.ImageExportComplete
	case KeyTargetImageID:
		return r.TargetImageID != ""
	case KeyTargetImageAvailable:
		return r.TargetImageAvailable
	case KeyTargetInstanceID:
		return r.TargetInstanceID != ""
	case KeyTargetInstanceRunning:
		return r.TargetInstanceRunning
	}
	_, ok := r.extra[string(key)]
	return ok
}

// Keys returns the committed known keys in persistence order.
func (r *Record) Keys() []Key {
	var keys []Key
	for _, k := range orderedKeys {
		if r.Has(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Empty reports whether no step has committed anything yet.
func (r *Record) Empty() bool {
	for _, k := range orderedKeys {
		if k != KeyMigrationID && r.Has(k) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.SourceImageDetails != nil {
		d := *r.SourceImageDetails
		c.SourceImageDetails = &d
	}
	if r.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(r.extra))
		for k, v := range r.extra {
			c.extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

type recordFields Record

// MarshalJSON writes known keys in persistence order followed by any
// preserved unknown keys in lexical order.
func (r Record) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(recordFields(r))
	if err != nil {
		return nil, err
	}
	if len(r.extra) == 0 {
		return known, nil
	}

	names := make([]string, 0, len(r.extra))
	for k := range r.extra {
		names = append(names, k)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.Write(known[:len(known)-1])
	first := len(known) == 2
	for _, name := range names {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(r.extra[name])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes known keys into typed fields and keeps the rest.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields recordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range orderedKeys {
		delete(all, string(k))
	}
	*r = Record(fields)
	if len(all) > 0 {
		r.extra = all
	}
	return nil
}

// Encode serializes the whole record as indented, human-editable JSON.
func Encode(r *Record) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode progress record: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a persisted snapshot. Any parse failure is reported as ErrCorrupt.
func Decode(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &r, nil
}
