package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventKind uint8

const (
	KindUnknown EventKind = iota
	CreateFile
	CreateFolder
	CreateAny
	ModifyDataContent
	ModifyDataAny
	ModifyMetadataWriteTime
	ModifyMetadataPermissions
	ModifyMetadataOwnership
	ModifyMetadataExtended
	ModifyMetadataAny
	RemoveFile
	RemoveFolder
	RemoveAny
	RenameFrom
	RenameTo
	RenameBoth
	Other
)

var kindNames = map[EventKind]string{
	CreateFile:                "CreateFile",
	CreateFolder:              "CreateFolder",
	CreateAny:                 "CreateAny",
	ModifyDataContent:         "ModifyDataContent",
	ModifyDataAny:             "ModifyDataAny",
	ModifyMetadataWriteTime:   "ModifyMetadata(WriteTime)",
	ModifyMetadataPermissions: "ModifyMetadata(Permissions)",
	ModifyMetadataOwnership:   "ModifyMetadata(Ownership)",
	ModifyMetadataExtended:    "ModifyMetadata(Extended)",
	ModifyMetadataAny:         "ModifyMetadata(Any)",
	RemoveFile:                "RemoveFile",
	RemoveFolder:              "RemoveFolder",
	RemoveAny:                 "RemoveAny",
	RenameFrom:                "RenameFrom",
	RenameTo:                  "RenameTo",
	RenameBoth:                "RenameBoth",
	Other:                     "Other",
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(text []byte) error {
	kind, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

func ParseKind(s string) (EventKind, error) {
	for kind, name := range kindNames {
		if name == s {
			return kind, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown event kind %q", s)
}

func (k EventKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k EventKind) IsCreate() bool {
	return k == CreateFile || k == CreateFolder || k == CreateAny
}

func (k EventKind) IsModify() bool {
	return k.IsData() || k.IsMetadata()
}

func (k EventKind) IsData() bool {
	return k == ModifyDataContent || k == ModifyDataAny
}

func (k EventKind) IsMetadata() bool {
	return k >= ModifyMetadataWriteTime && k <= ModifyMetadataAny
}

func (k EventKind) IsRemove() bool {
	return k == RemoveFile || k == RemoveFolder || k == RemoveAny
}

func (k EventKind) IsRename() bool {
	return k == RenameFrom || k == RenameTo || k == RenameBoth
}

// Flag is a bit set of event annotations.
type Flag uint8

const (
	// FlagRescan marks an Other event telling the consumer that events were
	// lost and its view of the watched roots must be rebuilt.
	FlagRescan Flag = 1 << iota
	// FlagOngoing marks a content write surfaced before its path went quiet.
	FlagOngoing
)

func (f Flag) Has(flag Flag) bool {
	return f&flag != 0
}

// Tracker correlates the two halves of a rename. Zero means none.
type Tracker uint64

const InfoOverride = "override"

type Event struct {
	Kind    EventKind `json:"kind"`
	Paths   []string  `json:"paths"`
	Time    time.Time `json:"time"`
	Tracker Tracker   `json:"tracker,omitempty"`
	Info    string    `json:"info,omitempty"`
	Flags   Flag      `json:"flags,omitempty"`
}

func NewEvent(kind EventKind, ts time.Time, paths ...string) Event {
	return Event{Kind: kind, Paths: paths, Time: ts}
}

// Path returns the path the event is queued under. Rename pairs are
// attributed to their destination.
func (e Event) Path() string {
	if len(e.Paths) == 0 {
		return ""
	}
	return e.Paths[len(e.Paths)-1]
}

func (e Event) NeedRescan() bool {
	return e.Kind == Other && e.Flags.Has(FlagRescan)
}

func (e Event) String() string {
	s := fmt.Sprintf("%s %v", e.Kind, e.Paths)
	if e.Tracker != 0 {
		s += fmt.Sprintf(" tracker=%d", e.Tracker)
	}
	if e.Info != "" {
		s += " info=" + e.Info
	}
	return s
}

// Clone returns a copy whose path slice is not shared with e.
func (e Event) Clone() Event {
	c := e
	c.Paths = append([]string(nil), e.Paths...)
	return c
}

// Batch is one flush worth of events, delivered to the consumer at once.
type Batch struct {
	ID        uuid.UUID `json:"id"`
	EmittedAt time.Time `json:"emitted_at"`
	Events    []Event   `json:"events"`
}
