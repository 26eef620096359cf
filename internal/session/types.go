package session

import (
	"time"

	"github.com/nerrad567/furnace-core/internal/sensorgroup"
)

// State is a session lifecycle state. Values match the seeded
// session_states ids.
type State int

const (
	StateCreated    State = 1
	StateInProgress State = 2
	StateStopped    State = 3
	StateCompleted  State = 4
)

var stateNames = map[State]string{
	StateCreated:    "CREATED",
	StateInProgress: "IN PROGRESS",
	StateStopped:    "STOPPED",
	StateCompleted:  "COMPLETED",
}

// String returns the stored state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether s is one of the four known states.
func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

// Active reports whether sessions in this state feed the routing index.
func (s State) Active() bool {
	return s == StateInProgress
}

// Ended reports whether the state ends routing for a session.
func (s State) Ended() bool {
	return s == StateStopped || s == StateCompleted
}

// Session is one monitoring run.
type Session struct {
	ID        int64      `json:"id"`
	Tag       string     `json:"tag"`
	StateID   State      `json:"stateId"`
	State     string     `json:"state"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	CreatedAt time.Time  `json:"createdAt"`

	// Parts is populated only when requested.
	Parts []Part `json:"parts,omitempty"`
}

// Part binds a named physical part to a sensor group within a session.
type Part struct {
	ID            int64 `json:"id"`
	SessionID     int64 `json:"sessionId"`
	PartNameID    int64 `json:"partNameId"`
	SensorGroupID int64 `json:"sensorGroupId"`

	PartName    *PartName          `json:"partName,omitempty"`
	SensorGroup *sensorgroup.Group `json:"sensorGroup,omitempty"`
}

// PartName is a reusable part label.
type PartName struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	OEM  *string `json:"oem"`
}

// PartInput is one requested part binding when creating a session.
type PartInput struct {
	PartNameID    int64 `json:"partNameId"`
	SensorGroupID int64 `json:"sensorGroupId"`
}

// Update carries the fields a PATCH may change. Nil fields are left alone.
type Update struct {
	Tag       *string
	State     *State
	StartTime *time.Time
	EndTime   *time.Time
}

// ListOptions controls session listing.
type ListOptions struct {
	Limit        int
	IncludeParts bool
}

// RoutingEntry tells ingestion where a reading for one entity belongs.
type RoutingEntry struct {
	SessionID int64  `json:"sessionId"`
	PartID    int64  `json:"partId"`
	SensorID  int64  `json:"sensorId"`
	GroupName string `json:"groupName"`
	PartName  string `json:"partName"`
}

// ActiveSession is a copy of one registry entry.
type ActiveSession struct {
	Session Session                 `json:"session"`
	Routes  map[string]RoutingEntry `json:"routes"`
}

// DeepCopy returns a copy sharing no pointers with s.
func (s *Session) DeepCopy() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.StartTime = copyTime(s.StartTime)
	cp.EndTime = copyTime(s.EndTime)
	if s.Parts != nil {
		cp.Parts = make([]Part, len(s.Parts))
		for i, p := range s.Parts {
			cp.Parts[i] = p.deepCopy()
		}
	}
	return &cp
}

func (p Part) deepCopy() Part {
	cp := p
	if p.PartName != nil {
		pn := *p.PartName
		if p.PartName.OEM != nil {
			oem := *p.PartName.OEM
			pn.OEM = &oem
		}
		cp.PartName = &pn
	}
	if p.SensorGroup != nil {
		g := *p.SensorGroup
		if p.SensorGroup.Sensors != nil {
			g.Sensors = make([]sensorgroup.Sensor, len(p.SensorGroup.Sensors))
			for i, s := range p.SensorGroup.Sensors {
				g.Sensors[i] = s
				if s.GroupID != nil {
					id := *s.GroupID
					g.Sensors[i].GroupID = &id
				}
			}
		}
		cp.SensorGroup = &g
	}
	return cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
