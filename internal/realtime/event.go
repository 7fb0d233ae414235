package realtime

import (
	"errors"
	"fmt"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/goccy/go-json"
)

// Kind tags an event on the wire.
type Kind string

const (
	KindNewAlert      Kind = "new-alert"
	KindAlertResolved Kind = "alert-resolved"
	KindSensorReading Kind = "sensor-reading"
	KindNewReport     Kind = "new-report"
	KindNotification  Kind = "notification"
)

// Kinds lists every event kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindNewAlert, KindAlertResolved, KindSensorReading, KindNewReport, KindNotification}
}

func (k Kind) Valid() bool {
	switch k {
	case KindNewAlert, KindAlertResolved, KindSensorReading, KindNewReport, KindNotification:
		return true
	}
	return false
}

var ErrUnknownKind = errors.New("realtime: unknown event kind")

// Event is one of NewAlert, AlertResolved, SensorReading, NewReport or
// Notification. The set is closed; other packages cannot add variants.
type Event interface {
	Kind() Kind
	payload() any
}

type NewAlert struct{ Alert model.Alert }

// AlertResolved carries only the id; the payload is the bare id string.
type AlertResolved struct{ ID string }

type SensorReading struct{ Reading model.SensorReading }

type NewReport struct{ Report model.Report }

// Notification is delivered only to the connections of Notification.UserID.
type Notification struct{ Notification model.Notification }

func (NewAlert) Kind() Kind      { return KindNewAlert }
func (AlertResolved) Kind() Kind { return KindAlertResolved }
func (SensorReading) Kind() Kind { return KindSensorReading }
func (NewReport) Kind() Kind     { return KindNewReport }
func (Notification) Kind() Kind  { return KindNotification }

func (e NewAlert) payload() any      { return e.Alert }
func (e AlertResolved) payload() any { return e.ID }
func (e SensorReading) payload() any { return e.Reading }
func (e NewReport) payload() any     { return e.Report }
func (e Notification) payload() any  { return e.Notification }

type envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode renders e as {"type": kind, "payload": ...}.
func Encode(e Event) ([]byte, error) {
	if e == nil {
		return nil, errors.New("realtime: nil event")
	}
	payload, err := json.Marshal(e.payload())
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.Kind(), err)
	}
	return json.Marshal(envelope{Type: e.Kind(), Payload: payload})
}

// Decode parses a wire message into its typed event.
func Decode(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}

	var (
		e   Event
		err error
	)
	switch env.Type {
	case KindNewAlert:
		var v NewAlert
		err = json.Unmarshal(env.Payload, &v.Alert)
		e = v
	case KindAlertResolved:
		var v AlertResolved
		err = json.Unmarshal(env.Payload, &v.ID)
		e = v
	case KindSensorReading:
		var v SensorReading
		err = json.Unmarshal(env.Payload, &v.Reading)
		e = v
	case KindNewReport:
		var v NewReport
		err = json.Unmarshal(env.Payload, &v.Report)
		e = v
	case KindNotification:
		var v Notification
		err = json.Unmarshal(env.Payload, &v.Notification)
		e = v
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return e, nil
}

// EntityID returns the id of the entity an event is about.
func EntityID(e Event) string {
	switch v := e.(type) {
	case NewAlert:
		return v.Alert.ID
	case AlertResolved:
		return v.ID
	case SensorReading:
		return v.Reading.ID
	case NewReport:
		return v.Report.ID
	case Notification:
		return v.Notification.ID
	}
	return ""
}
