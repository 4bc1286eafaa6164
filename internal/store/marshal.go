package store

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// smallest integer encoding. The same metadata always yields the same bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
}

// timeLayout is used for created_at columns. Fixed width keeps lexical and
// chronological order the same.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// marshalMetadata converts metadata to CBOR for the metadata BLOB column.
// Nil and empty maps both encode as an empty map.
func marshalMetadata(md inventory.Metadata) ([]byte, error) {
	if md == nil {
		md = inventory.Metadata{}
	}
	data, err := encMode.Marshal(map[string]string(md))
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

// unmarshalMetadata parses a metadata BLOB. Empty maps come back as nil.
func unmarshalMetadata(data []byte) (inventory.Metadata, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return inventory.Metadata(m), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}
