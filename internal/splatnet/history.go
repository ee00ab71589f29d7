package splatnet

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/go-faster/jx"
)

// ErrNoHistory is returned when the battle-history response has no entries.
// The account identifier can only be read from a history detail id.
var ErrNoHistory = errors.New("splatnet: no battle history")

// firstDetailPath locates the newest history detail id. Numeric elements
// index into arrays.
var firstDetailPath = []string{
	"data", "latestBattleHistories", "historyGroups", "nodes", "0",
	"historyDetails", "nodes", "0", "id",
}

// historyDetailPattern matches a decoded id such as
// "VsHistoryDetail-u-abc123:RECENT:20220910T042216_<uuid>".
var historyDetailPattern = regexp.MustCompile(
	`^(\w+)-u-(\w+):(?:(\w+):)?(\d{8}T\d{6})_([0-9a-f-]{36})$`)

const historyTimeLayout = "20060102T150405"

// HistoryDetail is a decoded history-detail id.
type HistoryDetail struct {
	Type      string
	UID       string
	ListType  string
	Timestamp time.Time
	UUID      string
}

// FirstHistoryDetailID extracts the newest history detail id from a
// LatestBattleHistoriesQuery response without decoding the whole document.
func FirstHistoryDetailID(body []byte) (string, error) {
	id, found, err := findString(jx.DecodeBytes(body), firstDetailPath)
	if err != nil {
		return "", fmt.Errorf("splatnet: reading battle history: %w", err)
	}

	if !found || id == "" {
		return "", ErrNoHistory
	}

	return id, nil
}

// ParseHistoryDetailID decodes a base64 history detail id.
func ParseHistoryDetailID(id string) (HistoryDetail, error) {
	raw, err := base64.StdEncoding.DecodeString(id)
	if err != nil {
		return HistoryDetail{}, fmt.Errorf("splatnet: decoding history id: %w", err)
	}

	m := historyDetailPattern.FindStringSubmatch(string(raw))
	if m == nil {
		return HistoryDetail{}, fmt.Errorf("splatnet: unrecognized history id %q", raw)
	}

	ts, err := time.Parse(historyTimeLayout, m[4])
	if err != nil {
		return HistoryDetail{}, fmt.Errorf("splatnet: history id timestamp: %w", err)
	}

	return HistoryDetail{
		Type:      m[1],
		UID:       m[2],
		ListType:  m[3],
		Timestamp: ts,
		UUID:      m[5],
	}, nil
}

// AccountID extracts the account identifier from a LatestBattleHistoriesQuery
// response.
func AccountID(body []byte) (string, error) {
	id, err := FirstHistoryDetailID(body)
	if err != nil {
		return "", err
	}

	detail, err := ParseHistoryDetailID(id)
	if err != nil {
		return "", err
	}

	return detail.UID, nil
}

// findString walks path and returns the string at its end. Values off the
// path are skipped unread.
func findString(d *jx.Decoder, path []string) (string, bool, error) {
	if len(path) == 0 {
		if d.Next() != jx.String {
			return "", false, d.Skip()
		}

		s, err := d.Str()

		return s, err == nil, err
	}

	var (
		out   string
		found bool
	)

	switch d.Next() {
	case jx.Object:
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if found || string(key) != path[0] {
				return d.Skip()
			}

			s, ok, err := findString(d, path[1:])
			out, found = s, ok

			return err
		})

		return out, found, err
	case jx.Array:
		want, convErr := strconv.Atoi(path[0])
		if convErr != nil {
			return "", false, d.Skip()
		}

		i := 0
		err := d.Arr(func(d *jx.Decoder) error {
			defer func() { i++ }()

			if found || i != want {
				return d.Skip()
			}

			s, ok, err := findString(d, path[1:])
			out, found = s, ok

			return err
		})

		return out, found, err
	default:
		return "", false, d.Skip()
	}
}
