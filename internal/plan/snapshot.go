package plan

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/seatplan/internal/seating"
)

// ErrInvalidSnapshot indicates that a persisted snapshot could not be decoded.
var ErrInvalidSnapshot = errors.New("plan: invalid snapshot")

// Snapshot is the opaque unit handed to a Store: the guest list and tables of
// one plan at a given version.
type Snapshot struct {
	PlanID  string          `json:"plan_id"`
	Version int64           `json:"version"`
	Guests  []seating.Guest `json:"guests"`
	Tables  seating.Tables  `json:"tables"`
}

// EncodeSnapshot serialises a snapshot. Companions must carry stable ids.
func EncodeSnapshot(snapshot Snapshot) ([]byte, error) {
	if snapshot.Guests == nil {
		snapshot.Guests = []seating.Guest{}
	}
	if snapshot.Tables == nil {
		snapshot.Tables = seating.Tables{}
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("plan: encode snapshot %s: %w", snapshot.PlanID, err)
	}
	return payload, nil
}

// DecodeSnapshot parses a payload produced by EncodeSnapshot.
func DecodeSnapshot(payload []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	for index := range snapshot.Guests {
		if snapshot.Guests[index].RSVPStatus == "" {
			snapshot.Guests[index].RSVPStatus = seating.RSVPPending
		}
	}
	for tableIndex := range snapshot.Tables {
		table := &snapshot.Tables[tableIndex]
		if table.Shape == "" {
			table.Shape = seating.TableShapeRound
		}
		for seatIndex := range table.Seats {
			if table.Seats[seatIndex].TableID == "" {
				table.Seats[seatIndex].TableID = table.ID
			}
		}
	}
	return snapshot, nil
}
