package models

import "time"

// Clazz represents a class
type Clazz struct {
	ID   string `json:"id"`   // Unique class ID
	Name string `json:"name"` // Class name
}

// RosterEntry is a roster line as read from a file or the store, before the
// weight has been converted.
type RosterEntry struct {
	Row    int    `json:"row"`    // 1-based source line, header is line 1
	Name   string `json:"name"`   // Student name
	Sex    string `json:"sex"`    // Sex label, e.g. "F" or "M"
	Weight string `json:"weight"` // Raw weight text
}

// Student represents a validated student record
type Student struct {
	Name   string  `json:"name"`
	Sex    string  `json:"sex"`
	Weight float64 `json:"weight"`
}

// Group is an ordered set of students produced by the grouping engine
type Group struct {
	Index   int       `json:"index"` // 1-based, in emission order
	Members []Student `json:"members"`
}

// Run is a stored grouping result, kept around so it can be downloaded
type Run struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"classId,omitempty"`
	Source    string    `json:"source,omitempty"` // Uploaded file name, if any
	CreatedAt time.Time `json:"createdAt"`
	Groups    []Group   `json:"groups"`
	Dropped   []Student `json:"dropped"`
	Mixed     bool      `json:"mixed"`
	MaxSpread float64   `json:"maxSpread"`
	GroupSize int       `json:"groupSize"`
}
