package partstore

// CursorKind selects where a GetRange scan anchors before applying its
// quantity and direction.
type CursorKind int

const (
	// FromBeginning anchors at the table's first entry.
	FromBeginning CursorKind = iota
	// FromEnding anchors at the table's last entry.
	FromEnding
	// FromKey anchors at a specific user key (present or not).
	FromKey
)

// RangeCursor is a GetRange scan anchor. Key is only meaningful when Kind
// is FromKey.
type RangeCursor struct {
	Kind CursorKind
	Key  string
}

// AtBeginning anchors a scan at the first entry of the table.
func AtBeginning() RangeCursor { return RangeCursor{Kind: FromBeginning} }

// AtEnding anchors a scan at the last entry of the table.
func AtEnding() RangeCursor { return RangeCursor{Kind: FromEnding} }

// AtKey anchors a scan at a specific user key.
func AtKey(key string) RangeCursor { return RangeCursor{Kind: FromKey, Key: key} }
