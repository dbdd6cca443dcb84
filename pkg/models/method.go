package models

import (
	"fmt"
	"strings"
)

// MethodID identifies one of the fixed download channels
type MethodID int

const (
	MethodSFTP MethodID = iota
	MethodSSH
	MethodCPanel

	// MethodCount is the size of the closed method set
	MethodCount = 3
)

// DefaultMethod is the method driven by the remote backend
const DefaultMethod = MethodSFTP

// MethodInfo holds display metadata for a download method
type MethodInfo struct {
	ID          MethodID
	Key         string
	Label       string
	Description string
}

var methodCatalogue = [MethodCount]MethodInfo{
	{ID: MethodSFTP, Key: "sftp", Label: "SFTP Pull", Description: "Securely download archives from SFTP endpoints."},
	{ID: MethodSSH, Key: "ssh", Label: "SSH Sync", Description: "Pull backups via SSH with verification checksums."},
	{ID: MethodCPanel, Key: "cpanel", Label: "cPanel API", Description: "Request and download cPanel-generated archives."},
}

// AllMethods returns every method in catalogue order
func AllMethods() []MethodID {
	return []MethodID{MethodSFTP, MethodSSH, MethodCPanel}
}

// Valid reports whether the id belongs to the method set
func (m MethodID) Valid() bool {
	return m >= 0 && m < MethodCount
}

// Info returns catalogue metadata for the method
func (m MethodID) Info() MethodInfo {
	if !m.Valid() {
		return MethodInfo{ID: m, Key: "unknown", Label: "Unknown"}
	}
	return methodCatalogue[m]
}

func (m MethodID) String() string {
	return m.Info().Key
}

// Tag is the bracketed prefix used in operator log lines, e.g. "[SFTP]"
func (m MethodID) Tag() string {
	return "[" + strings.ToUpper(m.String()) + "]"
}

// ParseMethodID resolves a case-insensitive method key
func ParseMethodID(s string) (MethodID, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, info := range methodCatalogue {
		if info.Key == key {
			return info.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown download method %q", s)
}

func (m MethodID) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid download method %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *MethodID) UnmarshalText(text []byte) error {
	id, err := ParseMethodID(string(text))
	if err != nil {
		return err
	}
	*m = id
	return nil
}

// JobState is the live record for one download method
type JobState struct {
	Running    bool   `json:"running"`
	Progress   int    `json:"progress"`
	LastResult string `json:"last_result"`
}

// IdleJobState is the state every method starts in and returns to on teardown
func IdleJobState() JobState {
	return JobState{Running: false, Progress: 0, LastResult: "Idle"}
}
